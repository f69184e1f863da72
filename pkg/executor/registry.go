package executor

import (
	"sort"
	"sync"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Registry holds the run records of an executor, safe for concurrent use.
// Records leave the registry as copies, the manifest they point to is never mutated.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*types.RunRecord
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{runs: map[string]*types.RunRecord{}}
}

// Add registers a record, false when the run ID is already taken
func (r *Registry) Add(record types.RunRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[record.RunID]; ok {
		return false
	}
	r.runs[record.RunID] = &record
	return true
}

// Get returns a copy of the record
func (r *Registry) Get(runID string) (types.RunRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.runs[runID]
	if !ok {
		return types.RunRecord{}, false
	}
	return *record, true
}

// Exists reports whether the run ID is registered
func (r *Registry) Exists(runID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.runs[runID]
	return ok
}

// Update applies fn to the record under the write lock and returns the updated copy
func (r *Registry) Update(runID string, fn func(*types.RunRecord)) (types.RunRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.runs[runID]
	if !ok {
		return types.RunRecord{}, false
	}
	fn(record)
	return *record, true
}

// List returns copies of all records, oldest first
func (r *Registry) List() []types.RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]types.RunRecord, 0, len(r.runs))
	for _, record := range r.runs {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].RunID < records[j].RunID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records
}

// Prune drops the records matched by fn and returns how many were dropped
func (r *Registry) Prune(fn func(types.RunRecord) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, record := range r.runs {
		if fn(*record) {
			delete(r.runs, id)
			removed++
		}
	}
	return removed
}

// Remove drops a record, it is used when an apply fails after the run ID was reserved
func (r *Registry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}
