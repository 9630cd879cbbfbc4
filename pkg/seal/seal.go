// Package seal is the symmetric-encryption collaborator for the window
// propagation channel. The envelope id doubles as the per-message nonce, so
// two sends never reuse a nonce as long as ids are never reused.
package seal

import (
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts and decrypts envelope bytes. The id must be the envelope's
// globally-unique id; it is bound to the ciphertext, so a message opened
// under a different id fails authentication.
type Cipher interface {
	Seal(plaintext []byte, id string) ([]byte, error)
	Open(ciphertext []byte, id string) ([]byte, error)
}

// XChaCha is an XChaCha20-Poly1305 Cipher. The 24-byte nonce is derived by
// hashing the envelope id.
type XChaCha struct {
	key [chacha20poly1305.KeySize]byte
}

// NewXChaCha creates a cipher from a 32-byte key shared by the contexts of
// one page.
func NewXChaCha(key []byte) (*XChaCha, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	c := &XChaCha{}
	copy(c.key[:], key)
	return c, nil
}

// Seal encrypts plaintext under the id-derived nonce.
func (c *XChaCha) Seal(plaintext []byte, id string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	nonce := nonceFor(id)
	return aead.Seal(nil, nonce, plaintext, []byte(id)), nil
}

// Open decrypts ciphertext sealed under the same id.
func (c *XChaCha) Open(ciphertext []byte, id string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	nonce := nonceFor(id)
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("seal: open failed: %w", err)
	}
	return plaintext, nil
}

func nonceFor(id string) []byte {
	sum := blake3.Sum256([]byte(id))
	return sum[:chacha20poly1305.NonceSizeX]
}
