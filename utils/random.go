package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// GenerateSessionID returns a new unguessable queue session id. Session ids
// double as the participant's notification channel suffix, so they must not
// be sequential.
func GenerateSessionID() (string, error) {
	byt := make([]byte, 16)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return "session_" + hex.EncodeToString(byt), nil
}

// IsValidSessionID reports whether a client-supplied session id is plausibly
// one of ours, before any store lookup happens.
func IsValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}
