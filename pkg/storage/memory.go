package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStorage keeps objects in process and serves them under BaseURL.
type MemoryStorage struct {
	objects map[string]memoryObject
	baseURL string
	mu      sync.RWMutex
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemory creates an empty MemoryStorage whose URLs start with baseURL.
func NewMemory(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (m *MemoryStorage) Put(_ context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error) {
	obj, err := newObject(r, size, 0, ACLPublicRead, opts)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(obj.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	key, contentType := obj.key, obj.contentType

	m.mu.Lock()
	m.objects[key] = memoryObject{contentType: contentType, data: data}
	m.mu.Unlock()

	return &FileInfo{
		Key:         key,
		ContentType: contentType,
		ACL:         obj.acl,
		Size:        int64(len(data)),
	}, nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) URL(_ context.Context, key string, _ ...URLOption) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrNotFound
	}
	return m.baseURL + "/" + key, nil
}

// Object returns the stored bytes and content type of key.
func (m *MemoryStorage) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Storage = (*MemoryStorage)(nil)
