// Package auth stores per-context bearer tokens for fleetctl. The default
// backend is the OS keychain; a plain JSON file cache is available for
// headless environments where no keychain service is running.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const keyringService = "fleetctl"

// Store persists bearer tokens keyed by context name.
type Store interface {
	Get(contextName string) (string, bool, error)
	Set(contextName, token string) error
	Delete(contextName string) error
}

// NewStore selects a backend by name. Empty and "keychain" pick the OS
// keychain; "file" picks the JSON cache at path.
func NewStore(backend, path string) (Store, error) {
	switch backend {
	case "", "keychain":
		return KeychainStore{}, nil
	case "file":
		return &FileStore{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown token storage backend: %s", backend)
	}
}

type KeychainStore struct{}

func (KeychainStore) Get(contextName string) (string, bool, error) {
	token, err := keyring.Get(keyringService, contextName)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read keychain: %w", err)
	}
	return token, true, nil
}

func (KeychainStore) Set(contextName, token string) error {
	if err := keyring.Set(keyringService, contextName, token); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}
	return nil
}

func (KeychainStore) Delete(contextName string) error {
	err := keyring.Delete(keyringService, contextName)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// FileStore keeps tokens in a mode-0600 JSON file.
type FileStore struct {
	Path string
}

type tokenCache struct {
	Tokens map[string]string `json:"tokens"`
}

func (s *FileStore) load() (*tokenCache, error) {
	content, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &tokenCache{Tokens: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache tokenCache
	if err := json.Unmarshal(content, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if cache.Tokens == nil {
		cache.Tokens = map[string]string{}
	}
	return &cache, nil
}

func (s *FileStore) save(cache *tokenCache) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	content, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	return os.WriteFile(s.Path, content, 0o600)
}

func (s *FileStore) Get(contextName string) (string, bool, error) {
	cache, err := s.load()
	if err != nil {
		return "", false, err
	}
	token, ok := cache.Tokens[contextName]
	return token, ok, nil
}

func (s *FileStore) Set(contextName, token string) error {
	cache, err := s.load()
	if err != nil {
		return err
	}
	cache.Tokens[contextName] = token
	return s.save(cache)
}

func (s *FileStore) Delete(contextName string) error {
	cache, err := s.load()
	if err != nil {
		return err
	}
	delete(cache.Tokens, contextName)
	return s.save(cache)
}
