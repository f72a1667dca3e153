package app

import (
	"context"

	"github.com/littlelayers/cartsync/internal/cart/domain"
)

// LocalStore is the device-local replica: one serialized snapshot under a
// fixed key. It survives restarts but is scoped to this device.
type LocalStore interface {
	Load(ctx context.Context) (domain.Snapshot, bool, error)
	Save(ctx context.Context, snap domain.Snapshot) error
	Clear(ctx context.Context) error
}

// RemoteStore is the authoritative per-user replica, rows keyed by
// (userID, productID). Every operation must be idempotent under that key:
// other devices signed in as the same user write concurrently, so the
// engine never issues a whole-cart overwrite through this interface.
type RemoteStore interface {
	ListItems(ctx context.Context, userID string) ([]domain.RemoteRecord, error)
	UpsertItem(ctx context.Context, userID string, item domain.Item) error
	DeleteItem(ctx context.Context, userID, productID string) error
	DeleteAll(ctx context.Context, userID string) error
}

// SnapshotListener receives the converged snapshot after every mutation and
// after every completed reconciliation.
type SnapshotListener func(snap domain.Snapshot)
