package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names the AEAD used to seal the stored token.
type Algorithm string

const (
	XChaCha20 Algorithm = "xchacha20"
	AESGCM    Algorithm = "aes-gcm"
)

// ParseAlgorithm maps a configured name to an Algorithm. Empty selects XChaCha20.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", XChaCha20, "chacha20":
		return XChaCha20, nil
	case AESGCM, "aes":
		return AESGCM, nil
	}
	return "", fmt.Errorf("unknown cipher %q", name)
}

// Cipher seals and opens the bearer token. Ciphertexts are base64url(nonce | sealed).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from key with SHA-256 and builds the AEAD.
func NewCipher(key string, algo Algorithm) (*Cipher, error) {
	if key == "" {
		return nil, errors.New("empty encryption key")
	}
	hash := sha256.Sum256([]byte(key))

	var (
		aead cipher.AEAD
		err  error
	)
	switch algo {
	case AESGCM:
		aead, err = newAESGCMAEAD(hash[:])
	case XChaCha20, "":
		aead, err = chacha20poly1305.NewX(hash[:])
		if err != nil {
			err = fmt.Errorf("failed to create XChaCha20-Poly1305 instance: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown cipher %q", algo)
	}
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func newAESGCMAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES-GCM instance: %w", err)
	}
	return aead, nil
}

func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(encoded), "="))
	if err != nil {
		return nil, fmt.Errorf("token is not base64url: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, errors.New("ciphertext is too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// GenerateKey returns 32 random bytes in base64url, usable as ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
