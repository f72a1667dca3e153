package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
	"github.com/littlelayers/cartsync/internal/cart/infra/memory"
)

func TestEngine_ConcurrentAddItemIncrement(t *testing.T) {
	ctx := context.Background()
	e := app.NewEngine(memory.NewLocalStore(), memory.NewRemoteStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := e.SignIn(ctx, "33c91148-21be-4a37-9df1-1a1d05cbbf5f"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	const N = 100
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < N; i++ {
		g.Go(func() error {
			_, err := e.AddItem(ctx, domain.Item{
				ProductID: "p1",
				Name:      "Cotton Romper",
				UnitPrice: 2400,
				Quantity:  1,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent AddItem failed: %v", err)
	}
	e.Wait()

	snap := e.Snapshot()
	if len(snap.Items) != 1 {
		t.Fatalf("expected a single entry, got %d", len(snap.Items))
	}
	if snap.Items[0].Quantity != N {
		t.Fatalf("quantity = %d, want %d", snap.Items[0].Quantity, N)
	}
}

func TestEngine_ConcurrentMutationsKeepSnapshotValid(t *testing.T) {
	ctx := context.Background()
	e := app.NewEngine(memory.NewLocalStore(), memory.NewRemoteStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	const N = 50
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < N; i++ {
		g.Go(func() error {
			if _, err := e.AddItem(ctx, domain.Item{ProductID: "p1", Quantity: 1}); err != nil {
				return err
			}
			_, err := e.SetQuantity(ctx, "p1", 2)
			return err
		})
		g.Go(func() error {
			_, err := e.RemoveItem(ctx, "p1")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent mutations failed: %v", err)
	}

	// Whatever the interleaving, the uniqueness invariant holds.
	snap := e.Snapshot()
	seen := map[string]bool{}
	for _, it := range snap.Items {
		if seen[it.ProductID] {
			t.Fatalf("duplicate product id in snapshot: %+v", snap.Items)
		}
		seen[it.ProductID] = true
	}
}
