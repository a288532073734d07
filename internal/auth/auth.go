package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// tokenCost is lower than a password cost because the token is checked on
// every API request.
const tokenCost = 10

// HashToken generates a bcrypt hash of an API token, suitable for the
// auth.token_hash setting.
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), tokenCost)
	return string(bytes), err
}

// CheckTokenHash compares a plaintext token with a stored bcrypt hash.
// It returns true if the token matches the hash.
func CheckTokenHash(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
