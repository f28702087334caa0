package store

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory is the in-memory Store used for development and tests. Same
// observable contract as the Postgres store: soft deletes, optimistic
// versions, ulid IDs.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]*Record // FQN -> id -> record
	entropy io.Reader
	now     func() time.Time
}

func NewMemory() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		data:    make(map[string]map[string]*Record),
		entropy: ulid.Monotonic(src, 0),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source (tests).
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) snapshot(rec *Record) *Record {
	cp := *rec
	cp.Data = cloneData(rec.Data)
	return &cp
}

func (m *Memory) Insert(ctx context.Context, entity string, data map[string]any) (*Record, error) {
	if _, ok := Registry[entity]; !ok {
		return nil, ErrEntityUnknown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[entity] == nil {
		m.data[entity] = make(map[string]*Record)
	}
	now := m.now()
	rec := &Record{
		ID:        m.newID(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      cloneData(data),
	}
	m.data[entity][rec.ID] = rec
	return m.snapshot(rec), nil
}

func (m *Memory) BulkInsert(ctx context.Context, entity string, rows []map[string]any) ([]*Record, error) {
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := m.Insert(ctx, entity, row)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, entity, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.data[entity][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	return m.snapshot(rec), nil
}

func (m *Memory) Select(ctx context.Context, q Query) ([]*Record, error) {
	if _, ok := Registry[q.Entity]; !ok {
		return nil, ErrEntityUnknown
	}
	m.mu.RLock()
	live := make([]*Record, 0, len(m.data[q.Entity]))
	for _, rec := range m.data[q.Entity] {
		if rec.Deleted {
			continue
		}
		if matchesAll(rec, q.Filters) {
			live = append(live, m.snapshot(rec))
		}
	}
	m.mu.RUnlock()

	sortRecords(live, q.Order)

	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > len(live) {
		start = len(live)
	}
	end := len(live)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return live[start:end], nil
}

func (m *Memory) Count(ctx context.Context, entity string, filters ...Filter) (int, error) {
	if _, ok := Registry[entity]; !ok {
		return 0, ErrEntityUnknown
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.data[entity] {
		if !rec.Deleted && matchesAll(rec, filters) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Update(ctx context.Context, entity, id string, expectedVersion int64, data map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[entity][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	if expectedVersion != NoVersionCheck && rec.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	rec.Data = cloneData(data)
	rec.Version++
	rec.UpdatedAt = m.now()
	return m.snapshot(rec), nil
}

func (m *Memory) Patch(ctx context.Context, entity, id string, expectedVersion int64, patch map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[entity][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	if expectedVersion != NoVersionCheck && rec.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	for k, v := range patch {
		rec.Data[k] = v
	}
	rec.Version++
	rec.UpdatedAt = m.now()
	return m.snapshot(rec), nil
}

func (m *Memory) Delete(ctx context.Context, entity, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[entity][id]
	if rec == nil || rec.Deleted {
		return ErrNotFound
	}
	rec.Deleted = true
	rec.Version++
	rec.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Restore(ctx context.Context, entity, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[entity][id]
	if rec == nil {
		return ErrNotFound
	}
	if rec.Deleted {
		rec.Deleted = false
		rec.Version++
		rec.UpdatedAt = m.now()
	}
	return nil
}
