package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// codeVerifierBytes yields a 64-character verifier once base64url
	// encoded, inside the 43-128 window RFC 7636 allows.
	codeVerifierBytes = 48

	// stateBytes yields a 32-character hex state token.
	stateBytes = 16

	// CodeChallengeMethod is fixed to S256. The plain fallback is never
	// offered.
	CodeChallengeMethod = "S256"
)

// PKCECredentials is everything generated for one authorization attempt.
// The verifier stays on the server; only the challenge and state are
// sent to the provider.
type PKCECredentials struct {
	CodeVerifier  string
	CodeChallenge string
	State         string
}

// GeneratePKCE produces a fresh verifier, its S256 challenge, and an
// independent CSRF state token. Randomness failure is a fatal
// configuration problem, not a recoverable condition.
func GeneratePKCE() (*PKCECredentials, error) {
	verifier, err := randomURLSafe(codeVerifierBytes)
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	state, err := randomHex(stateBytes)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	return &PKCECredentials{
		CodeVerifier:  verifier,
		CodeChallenge: CodeChallenge(verifier),
		State:         state,
	}, nil
}

// CodeChallenge derives the S256 challenge from a verifier.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// randomURLSafe returns n random bytes in unpadded base64url.
func randomURLSafe(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// randomHex returns n random bytes in lowercase hex.
func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
