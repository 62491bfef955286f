package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const publicIDPrefix = "U"

// GeneratePublicID returns an opaque public user identifier: a fixed
// prefix followed by 10 uppercase hex characters from a random source.
// Used for accounts created through OTP verification, which have no
// caller-chosen identity.
func GeneratePublicID() (string, error) {
	bytes := make([]byte, 5)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return publicIDPrefix + strings.ToUpper(hex.EncodeToString(bytes)), nil
}
