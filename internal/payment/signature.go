// Package payment implements the payment gateway adapters and the callback
// signature scheme.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrEmptySecret = errors.New("signing secret is required")

// Signer computes and checks callback signatures: the lowercase hex
// HMAC-SHA256 of "gatewayOrderID|paymentID" keyed by the shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) Sign(gatewayOrderID, paymentID string) string {
	return hex.EncodeToString(s.mac(gatewayOrderID, paymentID))
}

// Verify compares the encoded signature byte for byte in constant time, so
// only the lowercase hex form verifies.
func (s *Signer) Verify(gatewayOrderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(s.Sign(gatewayOrderID, paymentID)))
}

func (s *Signer) mac(gatewayOrderID, paymentID string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(gatewayOrderID + "|" + paymentID))
	return h.Sum(nil)
}
