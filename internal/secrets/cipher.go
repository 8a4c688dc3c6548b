package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed indicates the sealed value could not be authenticated.
var ErrDecryptFailed = errors.New("secret decryption failed")

// Cipher seals escrow signing seeds for storage. Implementations must be
// substitutable with envelope-encryption or HSM-backed variants without
// touching callers.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// NaClCipher seals values with XSalsa20-Poly1305 under a static 32-byte key.
type NaClCipher struct {
	key [32]byte
}

// NewNaClCipher builds a cipher from a 32-byte key.
func NewNaClCipher(key []byte) (*NaClCipher, error) {
	if len(key) != 32 {
		return nil, errors.New("cipher key must be 32 bytes")
	}
	c := &NaClCipher{}
	copy(c.key[:], key)
	return c, nil
}

// Seal encrypts plaintext and returns a base64 token with the nonce prepended.
func (c *NaClCipher) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token produced by Seal.
func (c *NaClCipher) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < 24 {
		return "", ErrDecryptFailed
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
