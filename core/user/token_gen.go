package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	tokenSalt = []byte("suivi.core.user.PasswordResetTokenGenerator")
	epoch2001 = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetTokens issues and checks single use password reset tokens: "<days since 2001, base36>-<signature>".
// A token dies with any change of password hash, last login or email.
type resetTokens struct {
	secret  string
	timeout time.Duration
	now     func() time.Time
}

// newResetTokens returns a generator whose tokens expire `timeout` after their issue day.
// The timeout is truncated to whole days: 36h keeps a token valid for one day after issue.
func newResetTokens(secret string, timeout time.Duration) resetTokens {
	return resetTokens{secret: secret, timeout: timeout, now: time.Now}
}

func daysSince2001(t time.Time) int64 {
	return int64(t.Sub(epoch2001) / (24 * time.Hour))
}

func (rt resetTokens) make(usr User) string {
	return rt.makeAt(usr, daysSince2001(rt.now()))
}

func (rt resetTokens) makeAt(usr User, days int64) string {
	ts := strconv.FormatInt(days, 36)
	return ts + "-" + rt.sign(usr, ts)
}

// sign keeps every other hex char of the HMAC-SHA256 of the user state and timestamp.
func (rt resetTokens) sign(usr User, ts string) string {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), rt.secret...))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Truncate(time.Second).Format(time.RFC3339)))
	}
	mac.Write([]byte(ts))
	mac.Write([]byte(usr.Email))

	sum := hex.EncodeToString(mac.Sum(nil))
	var half strings.Builder
	for i := 0; i < len(sum); i += 2 {
		half.WriteByte(sum[i])
	}
	return half.String()
}

func (rt resetTokens) check(usr User, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return errInvalidToken
	}
	days, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(rt.makeAt(usr, days)), []byte(token)) != 1 {
		return errInvalidToken
	}
	if daysSince2001(rt.now())-days > int64(rt.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

// EncodeUID encodes the user ID for use in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	return string(id), err
}
