package storage

import (
	"context"
	"sync"

	"github.com/smartdevs17/workflow-relay/internal/models"
)

// MemoryStore is the volatile backend: a process-local newest-first list
// with an optional cap. Only the oldest entries are dropped when the cap is
// exceeded.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []*models.LogEntry
	maxEntries int
}

// NewMemoryStore creates a volatile store. maxEntries <= 0 disables the cap.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{maxEntries: maxEntries}
}

// Append stores entry at the head of the list
func (m *MemoryStore) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	stored := cloneEntry(entry)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, nil)
	copy(m.entries[1:], m.entries)
	m.entries[0] = stored

	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		for i := m.maxEntries; i < len(m.entries); i++ {
			m.entries[i] = nil
		}
		m.entries = m.entries[:m.maxEntries]
	}

	return cloneEntry(stored), nil
}

// List returns one newest-first page
func (m *MemoryStore) List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.entries)
	start, end := opts.PageBounds(total)

	logs := make([]*models.LogEntry, 0, end-start)
	for _, entry := range m.entries[start:end] {
		logs = append(logs, cloneEntry(entry))
	}

	return &models.LogPage{
		Logs:  logs,
		Total: int64(total),
		Page:  opts.Page,
		Limit: opts.Limit,
	}, nil
}

// DeleteLatestWaiting removes the first matching entry in newest-first order
func (m *MemoryStore) DeleteLatestWaiting(ctx context.Context, match models.WaitingMatch) (*models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.entries {
		if !match.Matches(entry) {
			continue
		}
		last := len(m.entries) - 1
		copy(m.entries[i:], m.entries[i+1:])
		m.entries[last] = nil
		m.entries = m.entries[:last]
		return entry, nil
	}
	return nil, nil
}

// Clear removes all entries
func (m *MemoryStore) Clear(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := int64(len(m.entries))
	m.entries = nil
	return removed, nil
}

// Len returns the number of retained entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Status always reports a reachable volatile store
func (m *MemoryStore) Status(ctx context.Context) *StorageStatus {
	return liveStatus(BackendMemory, nil)
}

// Backend returns the backend name
func (m *MemoryStore) Backend() string {
	return BackendMemory
}

// Close is a no-op for the volatile store
func (m *MemoryStore) Close() error {
	return nil
}

func cloneEntry(entry *models.LogEntry) *models.LogEntry {
	if entry == nil {
		return nil
	}
	clone := *entry
	clone.Data = make(map[string]interface{}, len(entry.Data))
	for key, value := range entry.Data {
		clone.Data[key] = value
	}
	return &clone
}
