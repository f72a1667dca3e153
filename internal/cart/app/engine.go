package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/littlelayers/cartsync/internal/cart/domain"
	"github.com/littlelayers/cartsync/pkg/retry"
)

const (
	defaultRemoteTimeout = 5 * time.Second
	defaultMaxConcurrent = 10
)

// Engine owns the in-memory snapshot for the current session and keeps both
// replicas converged. Mutations are local-first: the snapshot and the local
// store are updated synchronously, the remote write is dispatched
// asynchronously and its failure never rolls the local change back.
type Engine struct {
	log    *slog.Logger
	local  LocalStore
	remote RemoteStore

	retryer       *retry.Retryer
	remoteTimeout time.Duration
	maxConcurrent int

	mu       sync.Mutex
	snapshot domain.Snapshot
	identity domain.Identity
	degraded bool
	seq      uint64

	// transitionMu serializes identity transitions so two merges for the
	// same user never interleave.
	transitionMu sync.Mutex

	listeners []SnapshotListener
	inflight  sync.WaitGroup
}

func NewEngine(local LocalStore, remote RemoteStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:    log,
		local:  local,
		remote: remote,
		retryer: retry.New(retry.Config{
			Retryable: []error{ErrRemoteUnavailable},
		}),
		remoteTimeout: defaultRemoteTimeout,
		maxConcurrent: defaultMaxConcurrent,
	}
}

// OnSnapshot registers a listener for converged snapshots. Register before
// the engine starts processing mutations or identity events.
func (e *Engine) OnSnapshot(fn SnapshotListener) {
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns the present in-memory snapshot. It never blocks on
// either replica.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

// Identity returns the identity the engine currently gates remote access on.
func (e *Engine) Identity() domain.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Degraded reports whether the last remote interaction failed. The cart
// keeps working locally while degraded; Sync clears it.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// AddItem appends the item, or increments the quantity of the existing
// entry with the same product id. A zero quantity means one.
func (e *Engine) AddItem(ctx context.Context, item domain.Item) (domain.Snapshot, error) {
	if err := validateItem(item); err != nil {
		return e.Snapshot(), err
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	e.mu.Lock()
	if i := e.snapshot.Find(item.ProductID); i >= 0 {
		e.snapshot.Items[i].Quantity += item.Quantity
		item = e.snapshot.Items[i]
	} else {
		e.snapshot.Items = append(e.snapshot.Items, item)
	}
	snap, id := e.persistLocked(ctx)
	e.mu.Unlock()

	e.emit(snap)
	if id.IsAuthenticated() {
		e.dispatchRemote("upsert", item.ProductID, func(ctx context.Context) error {
			return e.remote.UpsertItem(ctx, id.UserID, item)
		})
	}
	return snap, nil
}

// SetQuantity replaces the quantity of the item. A quantity below one is a
// removal. Missing product ids are a no-op.
func (e *Engine) SetQuantity(ctx context.Context, productID string, qty int32) (domain.Snapshot, error) {
	if strings.TrimSpace(productID) == "" {
		return e.Snapshot(), fmt.Errorf("%w: empty product id", ErrInvalidMutation)
	}
	if qty < 1 {
		return e.RemoveItem(ctx, productID)
	}

	e.mu.Lock()
	i := e.snapshot.Find(productID)
	if i < 0 {
		snap := e.snapshot.Clone()
		e.mu.Unlock()
		return snap, nil
	}
	e.snapshot.Items[i].Quantity = qty
	item := e.snapshot.Items[i]
	snap, id := e.persistLocked(ctx)
	e.mu.Unlock()

	e.emit(snap)
	if id.IsAuthenticated() {
		e.dispatchRemote("upsert", productID, func(ctx context.Context) error {
			return e.remote.UpsertItem(ctx, id.UserID, item)
		})
	}
	return snap, nil
}

// RemoveItem drops the item if present. Absent product ids are a no-op,
// not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID string) (domain.Snapshot, error) {
	if strings.TrimSpace(productID) == "" {
		return e.Snapshot(), fmt.Errorf("%w: empty product id", ErrInvalidMutation)
	}

	e.mu.Lock()
	i := e.snapshot.Find(productID)
	if i < 0 {
		snap := e.snapshot.Clone()
		e.mu.Unlock()
		return snap, nil
	}
	e.snapshot.Items = append(e.snapshot.Items[:i], e.snapshot.Items[i+1:]...)
	snap, id := e.persistLocked(ctx)
	e.mu.Unlock()

	e.emit(snap)
	if id.IsAuthenticated() {
		e.dispatchRemote("delete", productID, func(ctx context.Context) error {
			return e.remote.DeleteItem(ctx, id.UserID, productID)
		})
	}
	return snap, nil
}

// Clear empties the cart on both replicas. Used by checkout; sign-out goes
// through the identity transition instead, which leaves the remote alone.
func (e *Engine) Clear(ctx context.Context) (domain.Snapshot, error) {
	e.mu.Lock()
	e.snapshot = domain.Snapshot{}
	snap, id := e.persistLocked(ctx)
	e.mu.Unlock()

	e.emit(snap)
	if id.IsAuthenticated() {
		e.dispatchRemote("delete_all", "", func(ctx context.Context) error {
			return e.remote.DeleteAll(ctx, id.UserID)
		})
	}
	return snap, nil
}

// Sync opportunistically re-runs the merge against the remote replica. It
// is the retry hook for degraded state: the max-quantity merge and every
// upsert are idempotent, so re-running them is safe at any time. The write
// back is skipped if a mutation raced the sync; the mutation's own remote
// dispatch covers it.
func (e *Engine) Sync(ctx context.Context) error {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	e.mu.Lock()
	id := e.identity
	local := e.snapshot.Clone()
	seq := e.seq
	e.mu.Unlock()

	if !id.IsAuthenticated() {
		e.setDegraded(false)
		return nil
	}

	records, err := e.listRemote(ctx, id.UserID)
	if err != nil {
		e.setDegraded(true)
		return fmt.Errorf("sync for %s: %w", id.UserID, err)
	}
	merged, failed, refetchErr := e.merge(ctx, id.UserID, local, records)

	e.mu.Lock()
	stale := e.identity != id || e.seq != seq
	e.degraded = len(failed) > 0 || refetchErr != nil
	var snap domain.Snapshot
	if !stale {
		e.snapshot = merged
		snap, _ = e.persistLocked(ctx)
	}
	e.mu.Unlock()
	if !stale {
		e.emit(snap)
	}

	if refetchErr != nil {
		return fmt.Errorf("sync refetch for %s: %w", id.UserID, refetchErr)
	}
	if len(failed) > 0 {
		return &PartialMergeError{Failed: failed}
	}
	return nil
}

// Wait blocks until all dispatched remote writes have completed or failed.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// persistLocked writes the snapshot through to the local store and returns
// a clone plus the identity captured at the same instant. A local write
// failure is logged and tolerated: the in-memory snapshot stays the source
// of truth for the session.
func (e *Engine) persistLocked(ctx context.Context) (domain.Snapshot, domain.Identity) {
	e.seq++
	if err := e.local.Save(ctx, e.snapshot); err != nil {
		e.log.Warn("local cart write failed", slog.Any("err", err))
	}
	return e.snapshot.Clone(), e.identity
}

func (e *Engine) emit(snap domain.Snapshot) {
	for _, fn := range e.listeners {
		fn(snap.Clone())
	}
}

// dispatchRemote runs one remote write in the background with retry. The
// closure captures its own (userID, productID) key, so a stale in-flight
// call can never touch a snapshot produced by a later mutation.
func (e *Engine) dispatchRemote(op, productID string, fn func(ctx context.Context) error) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.remoteTimeout)
		defer cancel()
		if err := e.retryer.Do(ctx, func() error { return fn(ctx) }); err != nil {
			e.log.Warn("remote cart write failed",
				slog.String("op", op),
				slog.String("product_id", productID),
				slog.Any("err", err))
			e.setDegraded(true)
		}
	}()
}

func (e *Engine) setDegraded(v bool) {
	e.mu.Lock()
	e.degraded = v
	e.mu.Unlock()
}

func validateItem(item domain.Item) error {
	if strings.TrimSpace(item.ProductID) == "" {
		return fmt.Errorf("%w: empty product id", ErrInvalidMutation)
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("%w: negative unit price %d", ErrInvalidMutation, item.UnitPrice)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %d", ErrInvalidMutation, item.Quantity)
	}
	return nil
}
