package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokens(t *testing.T) {
	now := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)
	rt := resetTokens{secret: "secret", timeout: 3 * 24 * time.Hour, now: func() time.Time { return now }}

	usr := User{
		ID:        "f3b1c2a4-0000-4000-8000-000000000001",
		Username:  "marie.rh",
		Email:     "marie.rh@test.fr",
		IsActive:  true,
		LastLogin: now.Add(-time.Hour),
	}
	require.NoError(t, usr.SetPassword("Pwd-1234"))

	valid := rt.make(usr)
	tampered := valid[:len(valid)-1] + "0"
	if tampered == valid {
		tampered = valid[:len(valid)-1] + "1"
	}
	stale := rt.makeAt(usr, daysSince2001(now)-4)

	loggedIn := usr
	loggedIn.LastLogin = now
	newPwd := usr
	require.NoError(t, newPwd.SetPassword("New-pwd-42"))
	newEmail := usr
	newEmail.Email = "marie@test.fr"

	tests := []struct {
		name    string
		rt      resetTokens
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", rt: rt, usr: usr, wantErr: errInvalidToken},
		{name: "no separator", rt: rt, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "no timestamp", rt: rt, usr: usr, token: "-abc", wantErr: errInvalidToken},
		{name: "invalid base36", rt: rt, usr: usr, token: "7!x-abc", wantErr: errInvalidToken},
		{name: "tampered signature", rt: rt, usr: usr, token: tampered, wantErr: errInvalidToken},
		{name: "other secret", rt: resetTokens{secret: "other", timeout: rt.timeout, now: rt.now}, usr: usr, token: valid, wantErr: errInvalidToken},
		{name: "logged in since", rt: rt, usr: loggedIn, token: valid, wantErr: errInvalidToken},
		{name: "password changed", rt: rt, usr: newPwd, token: valid, wantErr: errInvalidToken},
		{name: "email changed", rt: rt, usr: newEmail, token: valid, wantErr: errInvalidToken},
		{name: "expired", rt: rt, usr: usr, token: stale, wantErr: errTokenExpired},
		{name: "valid", rt: rt, usr: usr, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.rt.check(tt.usr, tt.token))
		})
	}
}

func TestResetTokens_dayGranularity(t *testing.T) {
	issued := time.Date(2021, 6, 15, 23, 0, 0, 0, time.UTC)
	now := issued
	rt := resetTokens{secret: "secret", timeout: 36 * time.Hour, now: func() time.Time { return now }}
	usr := User{ID: "u1", Email: "u1@test.fr"}
	token := rt.make(usr)

	now = issued.Add(24 * time.Hour)
	assert.NoError(t, rt.check(usr, token), "next day")
	now = issued.Add(26 * time.Hour)
	assert.Equal(t, errTokenExpired, rt.check(usr, token), "two days later")
}

func TestResetTokens_format(t *testing.T) {
	rt := resetTokens{secret: "secret", now: func() time.Time { return time.Date(2001, 2, 5, 12, 0, 0, 0, time.UTC) }}
	token := rt.make(User{ID: "u1"})

	assert.Equal(t, "z-", token[:2], "35 days since 2001 in base36")
	assert.Len(t, token, 2+32)
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "f3b1c2a4-0000-4000-8000-000000000001"}
	id, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("!!!")
	assert.Error(t, err)
}
