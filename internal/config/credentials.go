package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the credential-encryption key from the
// operator-supplied passphrase (the same construction used elsewhere in
// this codebase for encrypting material at rest, minus the mnemonic/wallet
// specifics which are out of scope here).
const (
	credArgon2Time   = 3
	credArgon2Memory = 64 * 1024
	credArgon2Par    = 4
	credKeyLen       = 32
	credSaltLen      = 32
)

// EncryptedCredential is a connector RPC credential (username/password or
// API key) encrypted for storage outside the YAML config file, e.g. in the
// local peer store's settings table.
type EncryptedCredential struct {
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
}

// EncryptCredential encrypts plaintext (an RPC password or API key) with a
// key derived from passphrase via Argon2id, sealed with AES-256-GCM.
func EncryptCredential(plaintext, passphrase string) (*EncryptedCredential, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("config: empty passphrase")
	}

	salt := make([]byte, credSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("config: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, credArgon2Time, credArgon2Memory, credArgon2Par, credKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("config: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("config: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("config: generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return &EncryptedCredential{Ciphertext: ciphertext, Salt: salt, Nonce: nonce}, nil
}

// DecryptCredential reverses EncryptCredential.
func DecryptCredential(enc *EncryptedCredential, passphrase string) (string, error) {
	key := argon2.IDKey([]byte(passphrase), enc.Salt, credArgon2Time, credArgon2Memory, credArgon2Par, credKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("config: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("config: new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("config: decrypt: wrong passphrase or corrupted data: %w", err)
	}
	return string(plaintext), nil
}
