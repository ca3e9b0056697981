package token

import (
	"errors"
	"time"
)

// ErrInvalidToken covers tokens that fail decryption or were issued for another service.
var ErrInvalidToken = errors.New("token is invalid")

// Maker issues and checks the tokens that identify who uploads a batch.
type Maker interface {
	CreateToken(actor string, ttl time.Duration) (string, error)
	VerifyToken(token string) (*Payload, error)
}
