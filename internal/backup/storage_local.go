package backup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tenant-vault/internal/errors"
)

// LocalStorageProvider implements StorageProvider on the local filesystem.
// Default backend for development and single-host deployments.
type LocalStorageProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStorageProvider creates a provider rooted at the configured base path
func NewLocalStorageProvider(config *LocalConfig) (*LocalStorageProvider, error) {
	if config.BasePath == "" {
		return nil, errors.NewConfigurationError("base path is required for local storage", nil)
	}
	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0755
	}
	if err := os.MkdirAll(config.BasePath, permissions); err != nil {
		return nil, errors.NewStorageError("failed to create base directory", err)
	}
	return &LocalStorageProvider{basePath: config.BasePath, permissions: permissions}, nil
}

// Put writes an object, creating parent directories as needed
func (lsp *LocalStorageProvider) Put(ctx context.Context, path string, data []byte, _ string) error {
	full, err := lsp.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), lsp.permissions); err != nil {
		return errors.NewStorageError("failed to create object directory", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return errors.NewStorageError("failed to write object "+path, err)
	}
	return nil
}

// Get reads an object
func (lsp *LocalStorageProvider) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := lsp.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("object "+path+" not found", err)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to read object "+path, err)
	}
	return data, nil
}

// Delete removes an object
func (lsp *LocalStorageProvider) Delete(ctx context.Context, path string) error {
	full, err := lsp.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound("object "+path+" not found", err)
		}
		return errors.NewStorageError("failed to delete object "+path, err)
	}
	return nil
}

// List returns the object keys under a prefix
func (lsp *LocalStorageProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(lsp.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(lsp.basePath, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewStorageError("failed to list objects", err)
	}
	return keys, nil
}

// resolve maps a slash-separated key onto the base path, rejecting traversal
func (lsp *LocalStorageProvider) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.NewValidationError("object path cannot be empty", nil)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", errors.NewValidationError("invalid object path "+path, nil)
	}
	return filepath.Join(lsp.basePath, clean), nil
}
