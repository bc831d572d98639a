// Package store holds the in-memory item set of a session and enforces its status transitions.
package store

import (
	"fmt"
	"sync"
	"time"

	"bgRemover/worker/models"
)

// Store keeps items in ingestion order. All reads return copies so callers
// never observe a half-applied transition.
type Store struct {
	mu         sync.RWMutex
	order      []string
	items      map[string]*models.Item
	processing string
	now        func() time.Time
}

func New() *Store {
	return &Store{
		items: make(map[string]*models.Item),
		now:   time.Now,
	}
}

// Append adds a whole batch or nothing.
func (s *Store) Append(batch ...models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(batch))
	for _, it := range batch {
		if _, ok := s.items[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, it.ID)
		}
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	now := s.now()
	for _, it := range batch {
		item := it
		item.Status = models.StatusPending
		item.Progress = 0
		item.ResultBytes = nil
		item.ResultHandle = ""
		item.Error = ""
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.UpdatedAt = now
		s.items[item.ID] = &item
		s.order = append(s.order, item.ID)
	}
	return nil
}

func (s *Store) Get(id string) (models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	return it.Clone(), nil
}

func (s *Store) List() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Ready returns the items that carry result bytes, in ingestion order.
func (s *Store) Ready() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Item
	for _, id := range s.order {
		if it := s.items[id]; it.HasResult() {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Counts() map[models.ItemStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.ItemStatus]int, 4)
	for _, it := range s.items {
		counts[it.Status]++
	}
	return counts
}

// Processing returns the item currently being processed, if any.
func (s *Store) Processing() (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.processing == "" {
		return models.Item{}, false
	}
	return s.items[s.processing].Clone(), true
}

// Claim moves a pending item to processing. Only one item may be processing at a time.
func (s *Store) Claim(id string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	if s.processing != "" {
		return models.Item{}, fmt.Errorf("%w: %s", ErrAlreadyProcessing, s.processing)
	}
	if it.Status != models.StatusPending || it.HasResult() {
		return models.Item{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, models.StatusProcessing)
	}

	it.Status = models.StatusProcessing
	it.Progress = 0
	it.Error = ""
	it.UpdatedAt = s.now()
	s.processing = id
	return it.Clone(), nil
}

func (s *Store) SetProgress(id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != models.StatusProcessing {
		return fmt.Errorf("%w: progress on %s item", ErrInvalidTransition, it.Status)
	}
	it.Progress = clampProgress(progress)
	it.UpdatedAt = s.now()
	return nil
}

// Complete stores the result of a processing item and marks it done.
func (s *Store) Complete(id string, result []byte, handle string) (models.Item, error) {
	if len(result) == 0 || handle == "" {
		return models.Item{}, ErrEmptyResult
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	if it.Status != models.StatusProcessing {
		return models.Item{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, models.StatusDone)
	}

	it.ResultBytes = result
	it.ResultHandle = handle
	it.Status = models.StatusDone
	it.Progress = 100
	it.UpdatedAt = s.now()
	s.release(id)
	return it.Clone(), nil
}

// Fail marks a processing item failed and drops any result it may carry.
func (s *Store) Fail(id string, reason string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	if it.Status != models.StatusProcessing {
		return models.Item{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, models.StatusFailed)
	}

	it.ResultBytes = nil
	it.ResultHandle = ""
	it.Status = models.StatusFailed
	it.Error = reason
	it.UpdatedAt = s.now()
	s.release(id)
	return it.Clone(), nil
}

// Requeue puts a failed item back to pending.
func (s *Store) Requeue(id string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	if it.Status != models.StatusFailed {
		return models.Item{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, models.StatusPending)
	}

	it.Status = models.StatusPending
	it.Progress = 0
	it.Error = ""
	it.UpdatedAt = s.now()
	return it.Clone(), nil
}

// Delete removes an item and returns its last state so the caller can release its handle.
func (s *Store) Delete(id string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.release(id)
	return it.Clone(), nil
}

// Clear removes every item and returns them in ingestion order.
func (s *Store) Clear() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	s.items = make(map[string]*models.Item)
	s.order = nil
	s.processing = ""
	return out
}

func (s *Store) release(id string) {
	if s.processing == id {
		s.processing = ""
	}
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
