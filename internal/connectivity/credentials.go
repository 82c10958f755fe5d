package connectivity

import (
	"errors"
	"fmt"
	"strings"

	"ok-to-wake/internal/store"
)

// ErrInvalidCredentials is returned when a submitted name or secret is empty.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	keySSID     = "ssid"
	keyPassword = "password"
)

// NetworkProfile is the single stored network.
type NetworkProfile struct {
	Name   string
	Secret string
}

// Validate checks that both fields are set.
func (p NetworkProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty network name", ErrInvalidCredentials)
	}
	if p.Secret == "" {
		return fmt.Errorf("%w: empty secret", ErrInvalidCredentials)
	}
	return nil
}

// CredentialStore keeps the profile in the wifi namespace. Both fields are
// written and removed together.
type CredentialStore struct {
	kv store.KV
}

// NewCredentialStore returns a CredentialStore over kv.
func NewCredentialStore(kv store.KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Load returns the stored profile. ok is false when none is stored. Both
// fields come from the same read transaction.
func (c *CredentialStore) Load() (p NetworkProfile, ok bool, err error) {
	vals, err := c.kv.GetAll(store.NamespaceWiFi, keySSID, keyPassword)
	if err != nil {
		return NetworkProfile{}, false, fmt.Errorf("load credentials: %w", err)
	}
	ssid, hasSSID := vals[keySSID]
	pass, hasPass := vals[keyPassword]
	if !hasSSID || !hasPass {
		return NetworkProfile{}, false, nil
	}
	p = NetworkProfile{Name: string(ssid), Secret: string(pass)}
	if p.Validate() != nil {
		return NetworkProfile{}, false, nil
	}
	return p, true, nil
}

// Save replaces the stored profile in one transaction.
func (c *CredentialStore) Save(p NetworkProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := c.kv.PutAll(store.NamespaceWiFi, map[string][]byte{
		keySSID:     []byte(p.Name),
		keyPassword: []byte(p.Secret),
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear removes the stored profile.
func (c *CredentialStore) Clear() error {
	if err := c.kv.Delete(store.NamespaceWiFi, keySSID, keyPassword); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
