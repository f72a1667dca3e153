// Package memory holds in-process replica stores: the remote store backs
// dev mode when no database is configured, and both back tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
)

var (
	_ app.RemoteStore = (*RemoteStore)(nil)
	_ app.LocalStore  = (*LocalStore)(nil)
)

// RemoteStore keeps per-user cart rows in a map, keyed like the real
// remote: (userID, productID), last write wins.
type RemoteStore struct {
	mu   sync.Mutex
	rows map[string][]domain.RemoteRecord
	now  func() time.Time
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		rows: make(map[string][]domain.RemoteRecord),
		now:  time.Now,
	}
}

func (s *RemoteStore) ListItems(_ context.Context, userID string) ([]domain.RemoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RemoteRecord, len(s.rows[userID]))
	copy(out, s.rows[userID])
	return out, nil
}

func (s *RemoteStore) UpsertItem(_ context.Context, userID string, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.RemoteRecord{
		UserID:    userID,
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		ImageRef:  item.ImageRef,
		Quantity:  item.Quantity,
		UpdatedAt: s.now(),
	}
	for i, r := range s.rows[userID] {
		if r.ProductID == item.ProductID {
			s.rows[userID][i] = rec
			return nil
		}
	}
	s.rows[userID] = append(s.rows[userID], rec)
	return nil
}

func (s *RemoteStore) DeleteItem(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[userID]
	for i, r := range rows {
		if r.ProductID == productID {
			s.rows[userID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *RemoteStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, userID)
	return nil
}

// LocalStore is a volatile stand-in for the device-local replica.
type LocalStore struct {
	mu    sync.Mutex
	snap  domain.Snapshot
	found bool
}

func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

func (s *LocalStore) Load(_ context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), s.found, nil
}

func (s *LocalStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
	s.found = true
	return nil
}

func (s *LocalStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = domain.Snapshot{}
	s.found = false
	return nil
}
