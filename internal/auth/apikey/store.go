package apikey

import (
	"context"
	"errors"
	"sync"
)

// Common errors for identity stores.
var (
	// ErrStoreUnavailable indicates that the identity store could not be queried.
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// IdentityStore resolves credential fingerprints to client names.
type IdentityStore interface {
	// Lookup returns the client name for fingerprint, or "" when the
	// fingerprint is unknown. An error means the store could not answer.
	Lookup(ctx context.Context, fingerprint string) (string, error)
}

// ClientKeys maps client names to raw API keys, as stored in a client secret.
type ClientKeys map[string]string

// ClientKeysFromSecretData converts secret data into ClientKeys.
func ClientKeysFromSecretData(data map[string][]byte) ClientKeys {
	keys := make(ClientKeys, len(data))
	for name, value := range data {
		keys[name] = string(value)
	}
	return keys
}

// Index returns the fingerprint to client name map for the keys.
// Empty keys are skipped; when two clients share a key the
// lexicographically smaller client name wins.
func (k ClientKeys) Index() map[string]string {
	index := make(map[string]string, len(k))
	for name, key := range k {
		if key == "" {
			continue
		}
		fp := Fingerprint(key)
		if existing, ok := index[fp]; ok && existing < name {
			continue
		}
		index[fp] = name
	}
	return index
}

// MemoryStore is an in-memory IdentityStore.
type MemoryStore struct {
	clients map[string]string
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]string),
	}
}

// Lookup implements IdentityStore.
func (s *MemoryStore) Lookup(_ context.Context, fingerprint string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[fingerprint], nil
}

// Replace atomically swaps the store contents for keys.
func (s *MemoryStore) Replace(keys ClientKeys) {
	index := keys.Index()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = index
}

// LoadFromSecretData replaces the store contents with the clients in a
// secret's data (client name to raw key).
func (s *MemoryStore) LoadFromSecretData(data map[string][]byte) {
	s.Replace(ClientKeysFromSecretData(data))
}

// Count returns the number of known fingerprints.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Ensure MemoryStore implements IdentityStore.
var _ IdentityStore = (*MemoryStore)(nil)
