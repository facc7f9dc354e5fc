package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// minOpsKeyLength is the shortest ops API key HashOpsKey accepts.
const minOpsKeyLength = 24

// HashOpsKey hashes an ops API key for the OPS_API_KEY_HASH setting.
func HashOpsKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) < minOpsKeyLength {
		return "", fmt.Errorf("ops key must be at least %d characters", minOpsKeyLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyOpsKey wraps bcrypt.CompareHashAndPassword.
func VerifyOpsKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
