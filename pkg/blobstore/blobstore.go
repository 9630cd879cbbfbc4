// Package blobstore provides one-shot blob handles used for binary
// indirection: a handle is created from raw bytes and invalidated by its
// single consumer.
package blobstore

import (
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nuid"
)

// ErrConsumed is returned when a handle has already been consumed or never
// existed.
var ErrConsumed = errors.New("blobstore: handle already consumed or unknown")

// Handle references stored bytes. Handles are opaque and single-use.
type Handle string

// Store creates and consumes one-shot blob handles. Consume invalidates the
// handle; a second consume fails with ErrConsumed.
type Store interface {
	Create(ctx context.Context, data []byte) (Handle, error)
	Consume(ctx context.Context, h Handle) ([]byte, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	blobs map[Handle][]byte
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[Handle][]byte)}
}

// Create stores a copy of data under a fresh handle.
func (m *Memory) Create(_ context.Context, data []byte) (Handle, error) {
	h := Handle("blob." + nuid.Next())
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.blobs[h] = buf
	m.mu.Unlock()
	return h, nil
}

// Consume returns the stored bytes and invalidates the handle.
func (m *Memory) Consume(_ context.Context, h Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[h]
	if !ok {
		return nil, ErrConsumed
	}
	delete(m.blobs, h)
	return data, nil
}

// Len returns the number of live handles.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
