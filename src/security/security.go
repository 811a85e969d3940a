package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Store API credentials (consumer key/secret) are kept encrypted at rest.
// The AES-256-GCM key is derived from STORE_CREDENTIALS_KEY with scrypt and a
// fixed application salt, so the same env value always yields the same key.

var keySalt = []byte("opsportal-store-credentials-v1")

func deriveKey() ([]byte, error) {
	config := GetConfig()
	if config.StoreCRKey == "" {
		return nil, errors.New("STORE_CREDENTIALS_KEY is not set")
	}
	return scrypt.Key([]byte(config.StoreCRKey), keySalt, 1<<15, 8, 1, 32)
}

// EncryptString encrypts plain text and returns a base64 string with the
// GCM nonce prepended.
func EncryptString(plain string) (string, error) {
	key, err := deriveKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string) (string, error) {
	key, err := deriveKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credentials: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return "", errors.New("encrypted credentials too short")
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed credentials: %w", err)
	}

	return string(plain), nil
}
