package auth

import (
	"os"
	"time"
)

const (
	envUsername = "TWALER_API_USERNAME"
	envPassword = "TWALER_API_PASSWORD"
)

// EnvironmentStore reads a single read-only account from the environment
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account; an empty username matches it
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	user := os.Getenv(envUsername)
	pass := os.Getenv(envPassword)
	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != user {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     user,
		Password:     pass,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
