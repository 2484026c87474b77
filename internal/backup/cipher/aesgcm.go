package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// aesGCM implements AES-GCM authenticated encryption.
type aesGCM struct {
	baseAEAD
}

// newAESGCM builds an AES-GCM cipher. key must be 16, 24 or 32 bytes
// (AES-128/192/256).
func newAESGCM(key []byte) (*aesGCM, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, errors.New("cipher: invalid AES-GCM key size, must be 16, 24 or 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aesGCM{baseAEAD: baseAEAD{aead: aead}}, nil
}

func (c *aesGCM) Type() Type { return AESGCM }

func (c *aesGCM) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	return c.seal(plaintext, additionalData)
}

func (c *aesGCM) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	return c.open(ciphertext, additionalData)
}
