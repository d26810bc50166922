package order

import (
	"context"
	"sync"
)

// Store persists orders.
type Store interface {
	Save(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]Order, int, error)
	Stats(ctx context.Context) (Stats, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Order, error)
}

// MemoryStore keeps orders in process memory, listed in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
	ids    []string
}

// NewMemoryStore returns a store pre-loaded with seed orders.
func NewMemoryStore(seed ...Order) *MemoryStore {
	s := &MemoryStore{orders: make(map[string]Order, len(seed))}
	for _, o := range seed {
		_ = s.Save(context.Background(), o)
	}
	return s
}

func (s *MemoryStore) Save(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return ErrDuplicate
	}
	s.orders[o.ID] = o
	s.ids = append(s.ids, o.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orders[id]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.ids)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]Order, 0, end-offset)
	for _, id := range s.ids[offset:end] {
		out = append(out, s.orders[id])
	}
	return out, total, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, o := range s.orders {
		st.add(o.Status)
	}
	return st, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !CanTransition(o.Status, status) {
		return Order{}, ErrInvalidTransition
	}
	o.Status = status
	s.orders[id] = o
	return o, nil
}
