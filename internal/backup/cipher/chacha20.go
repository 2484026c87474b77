package cipher

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// chaCha20 implements ChaCha20-Poly1305 authenticated encryption.
type chaCha20 struct {
	baseAEAD
}

// newChaCha20 builds a ChaCha20-Poly1305 cipher. key must be exactly
// 32 bytes.
func newChaCha20(key []byte) (*chaCha20, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("cipher: invalid ChaCha20-Poly1305 key size, must be 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &chaCha20{baseAEAD: baseAEAD{aead: aead}}, nil
}

func (c *chaCha20) Type() Type { return ChaCha20 }

func (c *chaCha20) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	return c.seal(plaintext, additionalData)
}

func (c *chaCha20) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	return c.open(ciphertext, additionalData)
}
