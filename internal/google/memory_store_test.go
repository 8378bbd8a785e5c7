package google

import (
	"context"
	"sync"
)

// MemoryTokenStore keeps the credential in memory. It round-trips through the same
// encoding as FileTokenStore.
type MemoryTokenStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load returns the stored credential.
func (s *MemoryTokenStore) Load(_ context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoToken
	}
	return decodeCredential(s.data)
}

// Save replaces the stored credential.
func (s *MemoryTokenStore) Save(_ context.Context, cred *Credential) error {
	data, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Clear removes the stored credential.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// SetRaw replaces the stored bytes, bypassing encoding.
func (s *MemoryTokenStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

// Saves returns how many times Save succeeded.
func (s *MemoryTokenStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
