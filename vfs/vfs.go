// Package vfs implements the virtual filesystem the effect executor
// consults when fulfilling VfsRead/VfsWrite effects (§4.3). It is
// deliberately minimal: a path-keyed store, not a real filesystem —
// DyGram machines never touch the host disk directly.
package vfs

import (
	"context"
	"fmt"
	"sync"
)

// VFS is the interface the effect executor depends on; swappable for
// a future durable-backed implementation without changing effectexec.
type VFS interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
}

// ErrNotFound is returned by Read when path has never been written.
type ErrNotFound struct{ Path string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("vfs: file not found: %q", e.Path) }

// Memory is an in-process VFS backed by a mutex-guarded map, the
// default for tests and single-process execution.
type Memory struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemory returns an empty in-memory VFS.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]string)}
}

func (m *Memory) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	if !ok {
		return "", &ErrNotFound{Path: path}
	}
	return content, nil
}

func (m *Memory) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}
