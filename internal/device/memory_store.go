package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with a map keyed by serial.
// It backs the "memory" database driver and unit tests. Data is lost on
// restart. It deliberately does not implement Upserter.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// FindBySerial returns a copy of the record for serial.
func (m *MemoryStore) FindBySerial(_ context.Context, serial string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[serial]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return rec.Clone(), nil
}

// Insert stores a copy of rec.
func (m *MemoryStore) Insert(_ context.Context, rec *Record) error {
	if rec.Serial == "" {
		return &StoreError{Op: "insert", Err: ErrInvalidRecord}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.Serial]; ok {
		return &StoreError{Op: "insert", Serial: rec.Serial, Err: ErrDeviceExists}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = time.Now()
	}
	rec.RegisteredAt = rec.RegisteredAt.UTC().Truncate(time.Microsecond)

	stored := rec.Clone()
	normalise(stored)
	m.records[rec.Serial] = stored
	return nil
}

// UpdateFields writes the set members of fields.
func (m *MemoryStore) UpdateFields(_ context.Context, serial string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[serial]
	if !ok {
		return ErrDeviceNotFound
	}
	fields.Apply(rec)
	normalise(rec)
	return nil
}

// ListAll returns copies of every record ordered by RegisteredAt, then Serial.
func (m *MemoryStore) ListAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, *rec.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].RegisteredAt.Equal(records[j].RegisteredAt) {
			return records[i].RegisteredAt.Before(records[j].RegisteredAt)
		}
		return records[i].Serial < records[j].Serial
	})
	return records, nil
}

// normalise mirrors SQLStore, which stores empty strings as NULL.
func normalise(rec *Record) {
	if rec.UserID != nil && *rec.UserID == "" {
		rec.UserID = nil
	}
	if rec.Email != nil && *rec.Email == "" {
		rec.Email = nil
	}
	if rec.IPAddress != nil && *rec.IPAddress == "" {
		rec.IPAddress = nil
	}
}
