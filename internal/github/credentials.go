// Package github holds the remote-repository collaborator: the narrow
// GitHub-shaped interface the action handlers consume, its go-github
// implementation, and the credential store.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/kv"
)

// CredentialsKey is the KV key GitHub credentials are stored under.
const CredentialsKey = "markvault.github.credentials"

// ErrNoCredentials is returned when no GitHub credentials are configured.
// It is credential-class: never retried, and the UI prompts the user to
// re-authenticate instead of suggesting a retry.
var ErrNoCredentials = fmt.Errorf(
	"%w: GitHub credentials not configured", domain.ErrCredential)

// Credentials is the stored GitHub token.
type Credentials struct {
	Token string `json:"token"`
}

// CredentialStore provides access to the user's GitHub credentials.
type CredentialStore interface {
	// GetGitHubCredentials returns the stored credentials, or
	// ErrNoCredentials when none are configured.
	GetGitHubCredentials(ctx context.Context) (*Credentials, error)
}

// KVCredentialStore reads credentials from the key-value store.
type KVCredentialStore struct {
	kv kv.Store
}

// NewKVCredentialStore creates a credential store backed by kvStore.
func NewKVCredentialStore(kvStore kv.Store) *KVCredentialStore {
	return &KVCredentialStore{kv: kvStore}
}

// GetGitHubCredentials implements CredentialStore.
func (s *KVCredentialStore) GetGitHubCredentials(ctx context.Context) (*Credentials, error) {
	raw, err := s.kv.Get(ctx, CredentialsKey)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// SetGitHubCredentials stores the given credentials.
func (s *KVCredentialStore) SetGitHubCredentials(ctx context.Context, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.kv.Set(ctx, CredentialsKey, raw)
}
