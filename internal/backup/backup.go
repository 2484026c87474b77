// Package backup provides the encode/decode step snapshot and history
// writes go through: canonical JSON, optionally wrapped in an
// authenticated cipher when a deployment configures a backup
// encryption key (SPEC_FULL.md's domain-stack wiring for
// internal/backup/cipher).
package backup

import (
	"fmt"

	"github.com/yndnr/slotcache-go/internal/backup/cipher"
	"github.com/yndnr/slotcache-go/pkg/jsonenc"
)

// Codec marshals/unmarshals backup records, optionally authenticating
// and encrypting the encoded bytes. The site name is passed as
// additional authenticated data so a ciphertext from one site cannot
// be replayed under another.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec wraps encoding with aead. A nil aead is equivalent to
// NewPlainCodec.
func NewCodec(aead cipher.AEAD) *Codec {
	return &Codec{aead: aead}
}

// NewPlainCodec returns a Codec that only does JSON encoding, no
// encryption -- the default when no backup encryption key is
// configured.
func NewPlainCodec() *Codec {
	return &Codec{}
}

// Encode marshals v to JSON and, if a cipher is configured, encrypts
// the result with site as additional authenticated data.
func (c *Codec) Encode(site string, v any) ([]byte, error) {
	blob := jsonenc.MustMarshal(v)
	if c.aead == nil {
		return blob, nil
	}
	ciphertext, err := c.aead.Encrypt(blob, []byte(site))
	if err != nil {
		return nil, fmt.Errorf("backup: encrypt: %w", err)
	}
	return ciphertext, nil
}

// Decode reverses Encode into out.
func (c *Codec) Decode(site string, blob []byte, out any) error {
	if c.aead != nil {
		plain, err := c.aead.Decrypt(blob, []byte(site))
		if err != nil {
			return fmt.Errorf("backup: decrypt: %w", err)
		}
		blob = plain
	}
	return jsonenc.Unmarshal(blob, out)
}
