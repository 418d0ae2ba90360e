package testutil

import (
	"bytes"
	"context"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

// MockObjectStore is an in-memory stand-in for a JetStream object store. It
// satisfies request.ObjectGetter.
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	gets    int

	// Err, when set, is returned by every Get.
	Err error
}

// NewMockObjectStore creates an empty store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (s *MockObjectStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = append([]byte(nil), data...)
}

// Get returns the object or jetstream.ErrObjectNotFound.
func (s *MockObjectStore) Get(_ context.Context, name string, _ ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return &mockObject{
		Reader: bytes.NewReader(data),
		info:   &jetstream.ObjectInfo{ObjectMeta: jetstream.ObjectMeta{Name: name}, Size: uint64(len(data))},
	}, nil
}

// Gets returns how many times Get was called.
func (s *MockObjectStore) Gets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gets
}

type mockObject struct {
	*bytes.Reader
	info *jetstream.ObjectInfo
}

func (o *mockObject) Close() error                         { return nil }
func (o *mockObject) Info() (*jetstream.ObjectInfo, error) { return o.info, nil }
func (o *mockObject) Error() error                         { return nil }
