package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/clipforge/clipforge/internal/types"
)

// FileStore keeps credentials in a single JSON file, one record per
// user/provider pair. Tokens are secrets, so the file is written 0600.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type storeFile struct {
	Credentials []types.Credential `json:"credentials"`
}

func (s *FileStore) Get(_ context.Context, userID, provider string) (types.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return types.Credential{}, err
	}
	for _, c := range data.Credentials {
		if c.UserID == userID && c.Provider == provider {
			return c, nil
		}
	}
	return types.Credential{}, fmt.Errorf("no stored credential for %s/%s: %w", userID, provider, types.ErrCredentialNotFound)
}

func (s *FileStore) Put(_ context.Context, cred types.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i, c := range data.Credentials {
		if c.UserID == cred.UserID && c.Provider == cred.Provider {
			data.Credentials[i] = cred
			replaced = true
			break
		}
	}
	if !replaced {
		data.Credentials = append(data.Credentials, cred)
	}
	return s.save(data)
}

func (s *FileStore) Delete(_ context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	kept := data.Credentials[:0]
	for _, c := range data.Credentials {
		if c.UserID != userID || c.Provider != provider {
			kept = append(kept, c)
		}
	}
	data.Credentials = kept
	return s.save(data)
}

func (s *FileStore) load() (storeFile, error) {
	var data storeFile
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("read credential store: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parse credential store: %w", err)
	}
	return data, nil
}

func (s *FileStore) save(data storeFile) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write credential store: %w", err)
	}
	return nil
}
