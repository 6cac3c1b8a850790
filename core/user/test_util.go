package user

import "github.com/fleetops/suivi/core"

// MakeTestToken returns a valid reset token for usr, for use in other packages' tests.
func MakeTestToken(usr User, conf *core.Config) string {
	return newResetTokens(conf.SecretKey, conf.PasswordResetTimeoutDelta).make(usr)
}
