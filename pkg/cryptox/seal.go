// Package cryptox seals session material (refresh cookies and other
// credentials the CLI persists between invocations) so it is unreadable at
// rest. The sealing key is derived from a caller-supplied secret with
// Argon2id and the payload is encrypted with AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These match the current OWASP baseline for key
// derivation from low-entropy input.
const (
	argonIterations  = 3
	argonMemory      = 64 * 1024
	argonParallelism = 4
	keyLength        = 32

	// SaltLength is the length callers should use when generating a salt
	// with NewSalt.
	SaltLength = 16
)

// Sealer encrypts and decrypts small payloads with a key derived once from a
// secret and salt pair.
type Sealer struct {
	key []byte
}

// NewSalt returns a fresh random salt for NewSealer.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// NewSealer derives an AES-256 key from secret and salt. The same pair must
// be used to open what was sealed.
func NewSealer(secret, salt []byte) *Sealer {
	key := argon2.IDKey(secret, salt, argonIterations, argonMemory, argonParallelism, keyLength)
	return &Sealer{key: key}
}

// Seal encrypts plain with AES-256-GCM. The output is the random nonce
// followed by the ciphertext and auth tag.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts data produced by Seal, verifying the auth tag.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed data too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed data: %w", err)
	}
	return plain, nil
}

func (s *Sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
