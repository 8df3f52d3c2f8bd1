package session

import (
	"fmt"

	"portfolio-service/internal/utils"
)

// GenerateID generates a cryptographically secure session ID.
// 32 bytes = 256 bits of entropy.
func GenerateID() (string, error) {
	return randomToken(32)
}

// GenerateClientID generates the identifier stored in the client cookie.
func GenerateClientID() (string, error) {
	return randomToken(16)
}

// GenerateRefreshToken generates an opaque refresh token.
func GenerateRefreshToken() (string, error) {
	return randomToken(32)
}

func randomToken(size int) (string, error) {
	token, err := utils.RandomString(size)
	if err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}
	return token, nil
}
