package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

// Storage keeps objects as files under basePath; object ids are slash-separated relative paths.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) resolve(objectID string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(objectID, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve object", fmt.Errorf("object id %q escapes storage root", objectID))
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *Storage) Save(_ context.Context, objectID string, data io.Reader, _ int64, _ string) error {
	path, err := s.resolve(objectID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, objectID string) (io.ReadCloser, error) {
	path, err := s.resolve(objectID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Move renames within the same filesystem, so it is atomic from the reader's point of view.
func (s *Storage) Move(ctx context.Context, objectID, targetID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	from, err := s.resolve(objectID)
	if err != nil {
		return "", err
	}
	to, err := s.resolve(targetID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return "", fmt.Errorf("create target dir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return targetID, nil
}

func (s *Storage) Delete(_ context.Context, objectID string) error {
	path, err := s.resolve(objectID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Storage) EnsureContainer(_ context.Context, container string) (string, error) {
	path, err := s.resolve(container)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return container, nil
}

func (s *Storage) Exists(_ context.Context, objectID string) (bool, error) {
	path, err := s.resolve(objectID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	return !info.IsDir(), nil
}
