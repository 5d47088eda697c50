// Package diag keeps a bounded, newest-first log of check outcomes.
package diag

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/maltedev/pricewatch/internal/models"
)

const DefaultCapacity = 2000

// Buffer is an append-only ring of check records, newest first.
type Buffer struct {
	mu       sync.RWMutex
	entries  []models.CheckRecord
	capacity int
	path     string
}

// New creates a buffer persisted at path; pass an empty path for a
// purely in-memory buffer. Existing entries are loaded best-effort.
func New(path string, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{capacity: capacity, path: path}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var entries []models.CheckRecord
			if json.Unmarshal(data, &entries) == nil {
				if len(entries) > capacity {
					entries = entries[:capacity]
				}
				b.entries = entries
			}
		}
	}
	return b
}

// Add prepends a record, evicting the oldest past capacity.
func (b *Buffer) Add(rec models.CheckRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append([]models.CheckRecord{rec}, b.entries...)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
	b.persist()
}

// List returns up to limit newest entries; limit <= 0 means all.
func (b *Buffer) List(limit int) []models.CheckRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.CheckRecord, n)
	copy(out, b.entries[:n])
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Buffer) persist() {
	if b.path == "" {
		return
	}
	data, err := json.Marshal(b.entries)
	if err != nil {
		return
	}
	tmp := b.path + ".tmp"
	if os.WriteFile(tmp, data, 0o644) != nil {
		return
	}
	os.Rename(tmp, b.path)
}
