package token

import (
	"fmt"
	"time"

	"github.com/o1egl/paseto"
	"golang.org/x/crypto/chacha20poly1305"
)

// tokenFooter binds tokens to this service; tokens minted with the same key
// by another service carry a different footer and are refused.
const tokenFooter = "logistics-backend"

// PasetoMaker uses PASETO v2 local (symmetric) tokens.
type PasetoMaker struct {
	v2  *paseto.V2
	key []byte
}

func NewPasetoMaker(symmetricKey string) (Maker, error) {
	if len(symmetricKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("TOKEN_SYMMETRIC_KEY must be %d characters, got %d", chacha20poly1305.KeySize, len(symmetricKey))
	}
	return &PasetoMaker{v2: paseto.NewV2(), key: []byte(symmetricKey)}, nil
}

func (m *PasetoMaker) CreateToken(actor string, ttl time.Duration) (string, error) {
	payload, err := NewPayload(actor, ttl)
	if err != nil {
		return "", err
	}
	return m.v2.Encrypt(m.key, payload, tokenFooter)
}

// VerifyToken decrypts token and checks its footer and expiry.
func (m *PasetoMaker) VerifyToken(token string) (*Payload, error) {
	var (
		payload Payload
		footer  string
	)
	if err := m.v2.Decrypt(token, m.key, &payload, &footer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if footer != tokenFooter {
		return nil, fmt.Errorf("%w: unexpected footer %q", ErrInvalidToken, footer)
	}
	if err := payload.Valid(); err != nil {
		return nil, err
	}
	return &payload, nil
}
