package providers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const CodeChallengeMethodS256 = "S256"

// PKCEAuthorizer is implemented by adapters whose OAuth flow needs a code
// verifier. The verifier is generated per authorization and must be handed
// back on exchange.
type PKCEAuthorizer interface {
	AuthorizationURLWithVerifier(state string, verifier string) (string, error)
	ExchangeCodeWithVerifier(ctx context.Context, code string, verifier string) (TokenSet, error)
}

// NewCodeVerifier returns a 43 character RFC 7636 verifier.
func NewCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("providers: generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
