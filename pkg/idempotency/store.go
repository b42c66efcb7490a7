package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a completed response is replayed
const DefaultTTL = 24 * time.Hour

// Record is the stored outcome of one keyed request.
// Pending records hold the key while the first request is still running.
type Record struct {
	Key         string `json:"key"`
	RequestHash string `json:"requestHash"`
	Pending     bool   `json:"pending"`
	Status      int    `json:"status,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Store persists idempotency records
type Store interface {
	// Reserve stores a pending record unless the key already exists
	Reserve(ctx context.Context, rec Record, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, bool, error)
	Complete(ctx context.Context, rec Record, ttl time.Duration) error
	// Release drops a pending record so the request can be retried
	Release(ctx context.Context, key string) error
}

// ValidateKey checks the client-supplied key
func ValidateKey(key string) error {
	if len(key) > 255 {
		return fmt.Errorf("idempotency key must be at most 255 characters")
	}
	for _, r := range key {
		if r < 0x21 || r > 0x7e {
			return fmt.Errorf("idempotency key must be printable ASCII without spaces")
		}
	}
	return nil
}

// HashRequest fingerprints a request so a reused key with a different body is detected
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, rec Record, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(rec.Key); ok {
		return false, nil
	}
	rec.Pending = true
	s.records[rec.Key] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	rec := e.rec
	return &rec, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.records[rec.Key] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// live returns an unexpired entry, dropping an expired one. Caller holds mu.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.records[key]
	if !ok {
		return e, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.records, key)
		return e, false
	}
	return e, true
}
