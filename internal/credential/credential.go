// Package credential keeps provider API keys in the configuration table
// encrypted with AES-256-GCM under a machine-derived key.
package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// EncryptedPrefix marks values as encrypted in storage.
const EncryptedPrefix = "enc:v1:"

// KeyEnv overrides the machine-derived key, e.g. when the database moves
// between hosts.
const KeyEnv = "BRAINROT_SECRET_KEY"

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid encrypted format")
)

// Manager encrypts and decrypts single values.
type Manager struct {
	aead cipher.AEAD
}

// NewManager derives the key from KeyEnv when set, otherwise from
// identifiers of the current machine and user.
func NewManager() (*Manager, error) {
	if pass := os.Getenv(KeyEnv); pass != "" {
		return NewManagerWithPassphrase(pass)
	}
	return NewManagerWithPassphrase(machineEntropy())
}

// NewManagerWithPassphrase hashes passphrase into the AES-256 key.
func NewManagerWithPassphrase(passphrase string) (*Manager, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Manager{aead: aead}, nil
}

// Encrypt returns plaintext sealed and prefixed for storage. Empty stays
// empty.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned as-is so
// keys entered before encryption keep working.
func (m *Manager) Decrypt(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, EncryptedPrefix)
	if !ok {
		return stored, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrInvalidFormat, err)
	}
	n := m.aead.NonceSize()
	if len(sealed) < n {
		return "", ErrInvalidFormat
	}
	plaintext, err := m.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

func machineEntropy() string {
	var b strings.Builder
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	b.WriteString(hostname)
	b.WriteString(home)
	b.WriteString(runtime.GOOS)
	b.WriteString(runtime.GOARCH)
	b.WriteString("brainrot-credential-v1")
	if uid := os.Getuid(); uid != -1 {
		fmt.Fprintf(&b, "uid:%d", uid)
	}
	b.WriteString(os.Getenv("USER"))
	return b.String()
}

// MaskSecret shows only the first and last four characters of secret.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// IsSecret reports whether a configuration key holds a credential.
func IsSecret(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, "token") || strings.HasSuffix(k, "secret")
}

// ConfigStore is the key/value table secrets are persisted in.
type ConfigStore interface {
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
}

// Vault stores configuration values, encrypting those IsSecret selects.
type Vault struct {
	store ConfigStore
	mgr   *Manager
}

func NewVault(s ConfigStore, m *Manager) *Vault {
	return &Vault{store: s, mgr: m}
}

func (v *Vault) Set(ctx context.Context, key, value string) error {
	if IsSecret(key) {
		enc, err := v.mgr.Encrypt(value)
		if err != nil {
			return err
		}
		value = enc
	}
	return v.store.SetConfig(ctx, key, value)
}

// Get returns the plaintext value of key, "" when unset.
func (v *Vault) Get(ctx context.Context, key string) (string, error) {
	stored, err := v.store.GetConfig(ctx, key)
	if err != nil {
		return "", err
	}
	return v.mgr.Decrypt(stored)
}

// Lookup returns the stored value of key, falling back to the environment
// variable env when nothing is stored.
func (v *Vault) Lookup(ctx context.Context, key, env string) (string, error) {
	val, err := v.Get(ctx, key)
	if err != nil || val != "" {
		return val, err
	}
	return os.Getenv(env), nil
}
