package auth

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// memoryStore is an in-memory CredentialStore with error injection
type memoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	StoreError error
	ListError  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]Account)}
}

func (m *memoryStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *memoryStore) Retrieve(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *memoryStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Account
	for _, a := range m.accounts {
		acc := a
		out = append(out, &acc)
	}
	return out, nil
}

func (m *memoryStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *memoryStore) Exists(username string) bool {
	_, err := m.Retrieve(username)
	return err == nil
}

func TestCredentialManager(t *testing.T) {
	store := newMemoryStore()
	manager := NewManagerWithStores(store)

	account := &Account{Username: "crawler", Password: "hunter2hunter2"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero(), "Store stamps LastModified")

	retrieved, err := manager.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "hunter2hunter2", retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("crawler"))
	_, err = manager.Retrieve("crawler")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	err = manager.Delete("crawler")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerRejectsIncompleteAccounts(t *testing.T) {
	manager := NewManagerWithStores(newMemoryStore())

	assert.Error(t, manager.Store(&Account{Username: "crawler"}))
	assert.Error(t, manager.Store(&Account{Password: "secret"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := newMemoryStore()
	broken.StoreError = ErrStoreUnavailable
	working := newMemoryStore()

	manager := NewManagerWithStores(broken, working)
	require.NoError(t, manager.Store(&Account{Username: "a", Password: "b"}))
	assert.True(t, working.Exists("a"))
	assert.False(t, broken.Exists("a"))
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	store := newMemoryStore()
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	old := &Account{Username: "old", Password: "pw-old"}
	require.NoError(t, manager.Store(old))
	time.Sleep(5 * time.Millisecond)
	newer := &Account{Username: "new", Password: "pw-new"}
	require.NoError(t, manager.Store(newer))

	got, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "new", got.Username, "most recently modified wins")

	t.Setenv(envUsername, "envuser")
	t.Setenv(envPassword, "envpass")
	got, err = manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "envuser", got.Username)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "crawler", Password: "correct-horse"}
	sanitized := SanitizeAccount(account)

	assert.Equal(t, "crawler", sanitized.Username)
	assert.Equal(t, "co...se", sanitized.Password)
	assert.Equal(t, "******", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Username: "encrypted_user", Password: "plaintext-secret"}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("encrypted_user")
	require.NoError(t, err)
	assert.Equal(t, "plaintext-secret", retrieved.Password)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("plaintext-secret")), "file contains plaintext password")

	// a second store with the same passphrase reads the same file
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.Exists("encrypted_user"))

	require.NoError(t, store.Delete("encrypted_user"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed with the last account")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "u", Password: "p"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("u")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(envUsername, "envuser")
	t.Setenv(envPassword, "envpass")

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "envuser", account.Username)
	assert.Equal(t, "envpass", account.Password)

	_, err = store.Retrieve("someoneelse")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("envuser"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "b", Password: "pb"}))
	require.NoError(t, store.Store(&Account{Username: "a", Password: "pa"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Username)

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Exists("a"))
	assert.True(t, store.Exists("b"))
	assert.ErrorIs(t, store.Delete("a"), ErrCredentialsNotFound)
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource("user", "pass")
	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), req, src))
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)
	assert.NoError(t, src.Refresh(context.Background()))

	_, err = NewStaticSource("", "").Credentials(context.Background())
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerSourceRefresh(t *testing.T) {
	store := newMemoryStore()
	manager := NewManagerWithStores(store)
	require.NoError(t, manager.Store(&Account{Username: "crawler", Password: "v1"}))

	src := NewManagerSource(manager, "crawler")
	acc, err := src.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", acc.Password)

	require.NoError(t, manager.Store(&Account{Username: "crawler", Password: "v2"}))
	acc, _ = src.Credentials(context.Background())
	assert.Equal(t, "v1", acc.Password, "cached until refreshed")

	require.NoError(t, src.Refresh(context.Background()))
	acc, _ = src.Credentials(context.Background())
	assert.Equal(t, "v2", acc.Password)

	_, err = NewManagerSource(manager, "missing").Credentials(context.Background())
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}
