package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrURLExpired is returned by MemoryStore.Open for a URL past its expiry
var ErrURLExpired = errors.New("signed url expired")

// ErrObjectNotFound is returned by MemoryStore.Open for a missing object
var ErrObjectNotFound = errors.New("object not found")

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. Its signed URLs use the
// memory:// scheme and can be fetched back with Open.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory object store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryStore) EnsureContainer(_ context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := objectPath(container, markerKey)
	if _, ok := m.objects[path]; !ok {
		m.objects[path] = memoryObject{}
	}
	return nil
}

func (m *MemoryStore) ContainerExists(ctx context.Context, container string) (bool, error) {
	return m.Exists(ctx, container, markerKey)
}

func (m *MemoryStore) Exists(_ context.Context, container, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[objectPath(container, key)]
	return ok, nil
}

func (m *MemoryStore) Put(_ context.Context, container, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[objectPath(container, key)] = memoryObject{data: stored, contentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, container, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectPath(container, key))
	return nil
}

func (m *MemoryStore) PresignGet(_ context.Context, container, key string, expiry time.Duration) (string, error) {
	u := url.URL{
		Scheme:   "memory",
		Host:     "objects",
		Path:     "/" + objectPath(container, key),
		RawQuery: url.Values{"expires": {strconv.FormatInt(m.now().Add(expiry).Unix(), 10)}}.Encode(),
	}
	return u.String(), nil
}

// Open fetches the object a signed URL points at
func (m *MemoryStore) Open(rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "memory" {
		return nil, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid expiry: %w", err)
	}
	if m.now().Unix() > expires {
		return nil, "", ErrURLExpired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[strings.TrimPrefix(u.Path, "/")]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return obj.data, obj.contentType, nil
}
