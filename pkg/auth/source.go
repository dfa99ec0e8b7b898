package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Source hands out the credential pair used for Basic auth. Refresh is
// called after the API rejects the current pair.
type Source interface {
	Credentials(ctx context.Context) (*Account, error)
	Refresh(ctx context.Context) error
}

// StaticSource serves a fixed pair, typically from configuration
type StaticSource struct {
	account Account
}

// NewStaticSource creates a source for a fixed username and password
func NewStaticSource(username, password string) *StaticSource {
	return &StaticSource{account: Account{Username: username, Password: password}}
}

// Credentials returns a copy of the fixed pair
func (s *StaticSource) Credentials(ctx context.Context) (*Account, error) {
	if s.account.Username == "" || s.account.Password == "" {
		return nil, ErrCredentialsNotFound
	}
	acc := s.account
	return &acc, nil
}

// Refresh is a no-op; the next attempt resends the same pair
func (s *StaticSource) Refresh(ctx context.Context) error {
	return nil
}

// ManagerSource reads a pair from a Manager and re-reads it on Refresh
type ManagerSource struct {
	manager  *Manager
	username string

	mu      sync.RWMutex
	current *Account
}

// NewManagerSource looks up username, or the default account when empty
func NewManagerSource(manager *Manager, username string) *ManagerSource {
	return &ManagerSource{manager: manager, username: username}
}

// Credentials returns the cached pair, loading it on first use
func (s *ManagerSource) Credentials(ctx context.Context) (*Account, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		current = s.current
		s.mu.RUnlock()
	}

	acc := *current
	return &acc, nil
}

// Refresh drops the cached pair and loads it again from the stores
func (s *ManagerSource) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		account *Account
		err     error
	)
	if s.username == "" {
		account, err = s.manager.RetrieveDefault()
	} else {
		account, err = s.manager.Retrieve(s.username)
	}
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	s.mu.Lock()
	s.current = account
	s.mu.Unlock()
	return nil
}

// Apply sets the Authorization header on req from src
func Apply(ctx context.Context, req *http.Request, src Source) error {
	if src == nil {
		return ErrCredentialsNotFound
	}
	account, err := src.Credentials(ctx)
	if err != nil {
		return err
	}
	req.SetBasicAuth(account.Username, account.Password)
	return nil
}
