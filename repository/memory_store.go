package repository

import (
	"context"
	"sync"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

// MemoryStore keeps carts in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*models.Cart
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]*models.Cart),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) ReadCart(_ context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[ownerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) WriteCart(_ context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.carts[ownerID]
	if !ok {
		c = &models.Cart{OwnerID: ownerID, CreatedAt: now}
		s.carts[ownerID] = c
	}
	c.Items = models.CloneItems(items)
	c.UpdatedAt = now
	return c.Clone(), nil
}

func (s *MemoryStore) DeleteLineItem(_ context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[ownerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	c.Items, _ = withoutKey(c.Items, key)
	c.UpdatedAt = s.now()
	return c.Clone(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
