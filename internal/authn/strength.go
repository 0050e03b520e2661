package authn

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakPasswordScoreThreshold = 3

// IsWeakPassword reports whether password's estimated crack resistance is
// below the threshold. Used by the admin CLI to warn (not block) on
// user creation, matching the advisory, non-blocking way the source system
// treats proxy token strength.
func IsWeakPassword(password string) bool {
	if password == "" {
		return true
	}
	result := zxcvbn.PasswordStrength(password, nil)
	return result.Score < weakPasswordScoreThreshold
}
