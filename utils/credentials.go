package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}

// CheckAdminCredentials compares against the single configured admin account.
// An unset username or hash never authenticates.
func CheckAdminCredentials(username, password, wantUsername, passwordHash string) bool {
	if wantUsername == "" || passwordHash == "" {
		return false
	}
	userOk := subtle.ConstantTimeCompare([]byte(username), []byte(wantUsername)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passOk := ComparePassword(passwordHash, password) == nil
	return userOk && passOk
}
