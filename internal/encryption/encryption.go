// Package encryption provides payload encryption for stored session data.
// With an ENCRYPTION_KEY configured, values are sealed with AES-256-GCM using
// a PBKDF2-derived key; without one, a passthrough implementation is used so
// callers never branch.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Service encrypts, decrypts, and hashes stored payloads.
type Service interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(data string) string
}

// Key derivation parameters. Changing these invalidates previously stored
// ciphertexts, so they are fixed.
var (
	kdfSalt       = []byte("chat-relay-session-encryption-v1")
	kdfIterations = 100_000
)

// NewService returns an AES-GCM service when key is non-empty, and a
// passthrough service otherwise.
func NewService(key string) (Service, error) {
	if key == "" {
		return &noopService{}, nil
	}

	derived := pbkdf2.Key([]byte(key), kdfSalt, kdfIterations, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aesService{aead: aead, hmacKey: derived}, nil
}

type aesService struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// Encrypt seals plaintext and returns hex(nonce || ciphertext).
func (s *aesService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens hex(nonce || ciphertext).
func (s *aesService) Decrypt(ciphertext string) (string, error) {
	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid hex ciphertext: %w", err)
	}
	if len(data) < s.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// Hash returns a keyed HMAC-SHA256 digest for deterministic lookups.
func (s *aesService) Hash(data string) string {
	if data == "" {
		return ""
	}
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// noopService stores values unchanged. Hash still digests so lookups work the
// same with or without a key.
type noopService struct{}

func (s *noopService) Encrypt(plaintext string) (string, error) {
	return plaintext, nil
}

func (s *noopService) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func (s *noopService) Hash(data string) string {
	if data == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
