package discord

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// ErrInvalidSignature is returned when an interaction signature does not verify.
var ErrInvalidSignature = errors.New("discord: invalid interaction signature")

// Verifier checks interaction request signatures.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier parses a hex-encoded ed25519 public key.
func NewVerifier(publicKeyHex string) (*Verifier, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("discord: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("discord: public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify checks the X-Signature-Ed25519 header against timestamp || body.
func (v *Verifier) Verify(signatureHex, timestamp string, body []byte) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	if !ed25519.Verify(v.key, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
