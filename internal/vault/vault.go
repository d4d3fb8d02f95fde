package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hostpulse/hostpulse/internal/models"
)

var (
	// ErrInvalidKey is returned by New for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("vault: key must be 32 bytes")

	// ErrDecryptFailed is returned for any undecryptable input. It is
	// deliberately generic: callers must not be able to tell a wrong key
	// from corrupted ciphertext.
	ErrDecryptFailed = errors.New("vault: decryption failed")
)

// Secret is the payload encrypted into a credential. Kind discriminates
// which fields are meaningful; Extra carries forward-compatible additions.
// One vault format encodes every credential type uniformly.
type Secret struct {
	Kind       models.CredentialType `json:"kind"`
	Password   string                `json:"password,omitempty"`
	PrivateKey string                `json:"private_key,omitempty"`
	Passphrase string                `json:"passphrase,omitempty"`
	Token      string                `json:"token,omitempty"`
	Extra      map[string]string     `json:"extra,omitempty"`
}

// Vault encrypts and decrypts credential secrets with a fixed key.
type Vault struct {
	key []byte
}

// New creates a Vault from a raw 32-byte AES-256 key.
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return &Vault{key: key}, nil
}

// NewFromString creates a Vault from an operator-supplied string, padding
// with zero bytes or truncating to exactly 32 bytes. This is a deployment
// convenience, not a security recommendation: short keys carry far less
// than 256 bits of entropy.
func NewFromString(key string) (*Vault, error) {
	b := []byte(key)
	switch {
	case len(b) < 32:
		padded := make([]byte, 32)
		copy(padded, b)
		b = padded
	case len(b) > 32:
		b = b[:32]
	}
	return New(b)
}

// Encrypt serializes the secret and seals it with AES-256-GCM.
// The returned nonce is freshly generated for this call.
func (v *Vault) Encrypt(s *Secret) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return nil, nil, fmt.Errorf("serialize secret: %w", err)
	}

	gcm, err := v.aead()
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens the ciphertext and deserializes the secret. Any integrity or
// key mismatch yields ErrDecryptFailed.
func (v *Vault) Decrypt(ciphertext, nonce []byte) (*Secret, error) {
	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}

	// gcm.Open panics on a wrong-length nonce; a truncated row must fail
	// closed like any other corruption.
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var s Secret
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("deserialize secret: %w", err)
	}
	return &s, nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
