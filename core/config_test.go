package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckPasswordResetTimeout(t *testing.T) {
	assert.NoError(t, checkPasswordResetTimeout(24*time.Hour))
	assert.NoError(t, checkPasswordResetTimeout(3*24*time.Hour))
	assert.EqualError(t, checkPasswordResetTimeout(2*time.Hour), "must be at least 24h0m0s, got 2h0m0s")
	assert.Error(t, checkPasswordResetTimeout(0))
}
