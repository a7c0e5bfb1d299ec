// internal/config/keyring.go
package config

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "tableglass"

// KeyringStore manages secret storage in the system keyring
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore creates a new keyring store instance
func NewKeyringStore() (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// SetPassword stores a password under a key
func (k *KeyringStore) SetPassword(key, password string) error {
	return k.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(password),
	})
}

// GetPassword retrieves a password stored under a key
func (k *KeyringStore) GetPassword(key string) (string, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("password not found for: %s", key)
	}
	return string(item.Data), nil
}

// DeletePassword removes a password stored under a key
func (k *KeyringStore) DeletePassword(key string) error {
	return k.ring.Remove(key)
}
