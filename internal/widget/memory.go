package widget

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a concurrency-safe in-memory Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Widget
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]*Widget)}
}

// Create assigns w an ID and timestamps and stores a copy of it.
func (r *MemoryRepository) Create(_ context.Context, w *Widget) error {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	w.ID = r.nextID
	w.CreatedAt = now
	w.UpdatedAt = now

	row := *w
	r.rows[w.ID] = &row
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent callers from mutating internal state.
	w := *row
	return &w, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	widgets := make([]*Widget, 0, len(r.rows))
	for _, row := range r.rows {
		w := *row
		widgets = append(widgets, &w)
	}
	sort.Slice(widgets, func(i, j int) bool { return widgets[i].ID < widgets[j].ID })
	return widgets, nil
}

func (r *MemoryRepository) SetSpecsheetURL(_ context.Context, id int64, url string) (*Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.SpecsheetURL = url
	row.UpdatedAt = time.Now().UTC()

	w := *row
	return &w, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}
