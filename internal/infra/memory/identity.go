package memory

import (
	"context"

	"github.com/google/uuid"
)

// IdentityIssuer issues opaque anonymous identities, standing in for an
// external auth service.
type IdentityIssuer struct{}

func NewIdentityIssuer() IdentityIssuer { return IdentityIssuer{} }

func (IdentityIssuer) SignInAnonymously(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
