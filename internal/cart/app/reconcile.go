package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/littlelayers/cartsync/internal/cart/domain"
)

// SignIn runs the anonymous → authenticated reconciliation: the anonymous
// cart and the user's remote cart are merged with max-quantity conflict
// resolution, the result is pushed remotely, re-fetched, and becomes the
// working snapshot. Re-authenticating as the same user is a no-op.
func (e *Engine) SignIn(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidMutation)
	}
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()
	return e.reconcileSignIn(ctx, userID)
}

// SignOut discards the in-memory snapshot and the local replica. The remote
// store is left untouched: it stays the authoritative record for the next
// sign-in. Signing out while anonymous is a no-op.
func (e *Engine) SignOut(ctx context.Context) error {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	e.mu.Lock()
	if !e.identity.IsAuthenticated() {
		e.mu.Unlock()
		return nil
	}
	e.identity = domain.Anonymous()
	e.snapshot = domain.Snapshot{}
	e.degraded = false
	e.mu.Unlock()

	if err := e.local.Clear(ctx); err != nil {
		e.log.Warn("local cart clear failed", slog.Any("err", err))
	}
	e.emit(domain.Snapshot{})
	e.log.Info("signed out, local cart discarded")
	return nil
}

// RestoreSession runs at startup: it loads the persisted local snapshot
// and, if a session survived, reconciles exactly like a fresh sign-in.
// An empty userID restores an anonymous session.
func (e *Engine) RestoreSession(ctx context.Context, userID string) error {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	snap, found, err := e.local.Load(ctx)
	if err != nil {
		e.log.Warn("local cart load failed", slog.Any("err", err))
	}
	if found {
		e.mu.Lock()
		e.snapshot = snap
		e.mu.Unlock()
	}
	e.emit(e.Snapshot())

	if strings.TrimSpace(userID) == "" {
		return nil
	}
	return e.reconcileSignIn(ctx, userID)
}

// reconcileSignIn holds transitionMu.
func (e *Engine) reconcileSignIn(ctx context.Context, userID string) error {
	auth := domain.Authenticated(userID)

	e.mu.Lock()
	if e.identity == auth {
		e.mu.Unlock()
		return nil
	}
	local := e.snapshot.Clone()
	e.mu.Unlock()

	records, err := e.listRemote(ctx, userID)
	if err != nil {
		// The merge aborts; the anonymous cart stays the working snapshot
		// and Sync retries later.
		e.mu.Lock()
		e.identity = auth
		e.degraded = true
		e.mu.Unlock()
		e.log.Warn("sign-in merge aborted, staying local-only",
			slog.String("user_id", userID), slog.Any("err", err))
		return fmt.Errorf("sign-in merge for %s: %w", userID, err)
	}

	merged, failed, refetchErr := e.merge(ctx, userID, local, records)

	e.mu.Lock()
	e.identity = auth
	e.snapshot = merged
	e.degraded = len(failed) > 0 || refetchErr != nil
	snap, _ := e.persistLocked(ctx)
	e.mu.Unlock()
	e.emit(snap)

	e.log.Info("cart reconciled",
		slog.String("user_id", userID),
		slog.Int("items", len(merged.Items)),
		slog.Int("failed_upserts", len(failed)))

	if refetchErr != nil {
		return fmt.Errorf("post-merge fetch for %s: %w", userID, refetchErr)
	}
	if len(failed) > 0 {
		return &PartialMergeError{Failed: failed}
	}
	return nil
}

// merge resolves the local snapshot against the remote records, pushes the
// resolution, and re-fetches. Quantity conflicts take the larger of the two
// sides: neither source may cause a visible loss of items the user added,
// and max (unlike sum) stays idempotent when the merge is re-run.
func (e *Engine) merge(ctx context.Context, userID string, local domain.Snapshot, records []domain.RemoteRecord) (domain.Snapshot, map[string]error, error) {
	if local.Empty() {
		return snapshotFromRecords(records), nil, nil
	}

	byID := make(map[string]domain.RemoteRecord, len(records))
	for _, r := range records {
		byID[r.ProductID] = r
	}

	resolved := make([]domain.Item, len(local.Items))
	for i, it := range local.Items {
		if r, ok := byID[it.ProductID]; ok && r.Quantity > it.Quantity {
			it.Quantity = r.Quantity
		}
		resolved[i] = it
	}

	failed := e.pushItems(ctx, userID, resolved)

	// Re-fetch so the snapshot reflects rows other devices wrote while we
	// merged, and only those of our upserts that actually landed.
	after, err := e.listRemote(ctx, userID)
	if err != nil {
		// Fall back to the locally computed merge; every product from
		// either side is still present.
		merged := domain.Snapshot{Items: resolved}
		seen := make(map[string]struct{}, len(resolved))
		for _, it := range resolved {
			seen[it.ProductID] = struct{}{}
		}
		for _, r := range records {
			if _, ok := seen[r.ProductID]; !ok {
				merged.Items = append(merged.Items, domain.ItemFromRecord(r))
			}
		}
		return merged, failed, err
	}
	return snapshotFromRecords(after), failed, nil
}

// pushItems upserts the items with bounded concurrency. Failures are
// collected per product id, never cancel the remaining upserts.
func (e *Engine) pushItems(ctx context.Context, userID string, items []domain.Item) map[string]error {
	if len(items) == 0 {
		return nil
	}

	var mu sync.Mutex
	failed := make(map[string]error)

	g := new(errgroup.Group)
	g.SetLimit(e.maxConcurrent)
	for _, it := range items {
		it := it
		g.Go(func() error {
			err := e.retryer.Do(ctx, func() error {
				return e.remote.UpsertItem(ctx, userID, it)
			})
			if err != nil {
				mu.Lock()
				failed[it.ProductID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	return failed
}

func (e *Engine) listRemote(ctx context.Context, userID string) ([]domain.RemoteRecord, error) {
	var records []domain.RemoteRecord
	err := e.retryer.Do(ctx, func() error {
		var err error
		records, err = e.remote.ListItems(ctx, userID)
		return err
	})
	return records, err
}

func snapshotFromRecords(records []domain.RemoteRecord) domain.Snapshot {
	if len(records) == 0 {
		return domain.Snapshot{}
	}
	items := make([]domain.Item, len(records))
	for i, r := range records {
		items[i] = domain.ItemFromRecord(r)
	}
	return domain.Snapshot{Items: items}
}
