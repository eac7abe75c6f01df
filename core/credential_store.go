package core

import (
	"context"
	"strings"
	"sync"
)

// MemoryCredentialStore keeps the credential for the life of the process.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryCredentialStore(initial string) *MemoryCredentialStore {
	return &MemoryCredentialStore{token: strings.TrimSpace(initial)}
}

func (s *MemoryCredentialStore) Load(context.Context) (string, error) {
	if s == nil {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, token string) error {
	if s == nil {
		return NewInternalError("core: memory credential store is nil", nil)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return NewBadInputError("core: credential is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryCredentialStore) Erase(context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
