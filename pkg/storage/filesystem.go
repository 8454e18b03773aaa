package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemStore keeps icons under a local root directory.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create icon root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectKey(ref)))
}

// Put stores content and returns its content-addressed reference.
func (s *FilesystemStore) Put(_ context.Context, content []byte, _ string) (string, error) {
	ref := hashRef(content)
	path := s.path(ref)

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create icon directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".icon-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp icon file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write icon: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close icon file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store icon: %w", err)
	}
	return ref, nil
}

// Get opens the blob for ref.
func (s *FilesystemStore) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(ref))
	if os.IsNotExist(err) {
		return nil, ErrIconNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open icon: %w", err)
	}
	return f, nil
}

// Delete removes the blob for ref.
func (s *FilesystemStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(s.path(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete icon: %w", err)
	}
	return nil
}

// HealthCheck verifies the root directory is writable.
func (s *FilesystemStore) HealthCheck(_ context.Context) error {
	probe, err := os.CreateTemp(s.root, ".health-*")
	if err != nil {
		return fmt.Errorf("icon root not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
