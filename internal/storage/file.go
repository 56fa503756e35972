package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "restockbot/pkg/logx"
)

// fileStore keeps one file per key under a root directory. Writes go through
// a temp file + rename so a crash mid-write never leaves a torn blob behind.
type fileStore struct {
	log  logx.Logger
	root string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	root := strings.TrimSpace(cfg.Path)
	if root == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, root: root}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *fileStore) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// keyPath maps a blob key like "relay/cursor.json" onto the root directory,
// rejecting anything that would escape it.
func (s *fileStore) keyPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blob key is empty")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errors.New("blob key escapes storage root: " + key)
	}
	return filepath.Join(s.root, clean), nil
}
