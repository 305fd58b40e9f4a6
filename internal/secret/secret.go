// Package secret turns the stored, encrypted bearer token into the plaintext
// credential used by the request executor.
package secret

import (
	"strings"

	"github.com/rs/zerolog"
)

// Token is the plaintext bearer token. It prints redacted.
type Token string

func (t Token) String() string {
	if t == "" {
		return ""
	}
	return "[redacted]"
}

// Reveal returns the raw token for the Authorization header.
func (t Token) Reveal() string {
	return string(t)
}

type Config struct {
	Encrypted string
	Key       string
	Algorithm Algorithm
	Logger    zerolog.Logger
}

// Provision decrypts the configured token. It fails closed: any problem yields
// an empty token and a log entry, never an error, so the agent still starts and
// its calls fail with an auth error.
func Provision(cfg Config) Token {
	log := cfg.Logger

	if strings.TrimSpace(cfg.Encrypted) == "" {
		log.Warn().Msg("No auth token configured, API calls will be unauthenticated")
		return ""
	}

	key := cfg.Key
	if key == "" {
		generated, err := GenerateKey()
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate encryption key")
			return ""
		}
		log.Warn().Msg("ENCRYPTION_KEY not set, generated an ephemeral key; the stored token cannot be decrypted with it")
		key = generated
	}

	c, err := NewCipher(key, cfg.Algorithm)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build token cipher")
		return ""
	}

	plaintext, err := c.Decrypt(cfg.Encrypted)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decrypt auth token")
		return ""
	}

	return Token(strings.TrimSpace(string(plaintext)))
}

// Seal encrypts token with key, generating a key when none is given. It
// returns the ciphertext and the key actually used.
func Seal(token, key string, algo Algorithm) (string, string, error) {
	if key == "" {
		generated, err := GenerateKey()
		if err != nil {
			return "", "", err
		}
		key = generated
	}

	c, err := NewCipher(key, algo)
	if err != nil {
		return "", "", err
	}
	encrypted, err := c.Encrypt([]byte(token))
	if err != nil {
		return "", "", err
	}
	return encrypted, key, nil
}
