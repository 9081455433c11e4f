// Package store persists committed artifacts: content-addressed blob storage
// for the exported bytes and a SQLite index mapping artifact references to
// documents and rule-list fingerprints.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrBlobNotFound reports a missing content address.
var ErrBlobNotFound = errors.New("store: blob not found")

// BlobStore holds immutable payloads keyed by content address.
type BlobStore interface {
	// Put stores the payload and returns its content address. Storing the
	// same bytes twice returns the same address.
	Put(data []byte) (string, error)
	Get(addr string) ([]byte, error)
	Has(addr string) bool
}

func contentAddress(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FS is a filesystem blob store sharded by address prefix.
type FS struct {
	root string
}

// NewFS creates the store root with restricted permissions.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	_ = os.Chmod(root, 0700)
	return &FS{root: root}, nil
}

func (s *FS) path(addr string) string {
	return filepath.Join(s.root, addr[:2], addr)
}

func (s *FS) Put(data []byte) (string, error) {
	addr := contentAddress(data)
	path := s.path(addr)
	if _, err := os.Stat(path); err == nil {
		return addr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create blob shard: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return addr, nil
}

func (s *FS) Get(addr string) ([]byte, error) {
	if len(addr) < 3 {
		return nil, ErrBlobNotFound
	}
	data, err := os.ReadFile(s.path(addr))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FS) Has(addr string) bool {
	if len(addr) < 3 {
		return false
	}
	_, err := os.Stat(s.path(addr))
	return err == nil
}

// Memory is an in-process blob store for tests and previews.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(data []byte) (string, error) {
	addr := contentAddress(data)
	m.mu.Lock()
	if _, ok := m.blobs[addr]; !ok {
		m.blobs[addr] = append([]byte(nil), data...)
	}
	m.mu.Unlock()
	return addr, nil
}

func (m *Memory) Get(addr string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.blobs[addr]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, addr)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Has(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[addr]
	return ok
}
