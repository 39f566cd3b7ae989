package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	saltLen    = 16
	iterations = 100000
)

var ErrMalformedBlob = errors.New("malformed seed blob")

// Vault encrypts server seeds at rest. The key is derived from the operator
// secret with PBKDF2-SHA256 and a per-record random salt; the salt and the
// GCM nonce travel inside the stored blob, so a record stays decryptable
// with nothing but the operator secret.
type Vault struct {
	secret []byte
}

func New(secret string) *Vault {
	return &Vault{secret: []byte(secret)}
}

func (v *Vault) Encrypt(seed string) (string, error) {
	const op = "vault.Vault.Encrypt"

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	blob := make([]byte, 0, saltLen+gcm.NonceSize()+len(seed)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(seed), nil)

	return base64.URLEncoding.EncodeToString(blob), nil
}

func (v *Vault) Decrypt(encrypted string) (string, error) {
	const op = "vault.Vault.Decrypt"

	blob, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedBlob)
	}

	if len(blob) < saltLen {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedBlob)
	}

	salt, rest := blob[:saltLen], blob[saltLen:]

	gcm, err := v.aead(salt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedBlob)
	}

	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	seed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(seed), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.secret, salt, iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
