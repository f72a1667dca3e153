package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/littlelayers/cartsync/internal/cart/domain"
)

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore()

	item := domain.Item{ProductID: "p1", Name: "Romper", UnitPrice: 2400, Quantity: 3}
	require.NoError(t, s.UpsertItem(ctx, "u1", item))
	require.NoError(t, s.UpsertItem(ctx, "u1", item))

	records, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(3), records[0].Quantity)
}

func TestUpsertOverwritesFields(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore()

	require.NoError(t, s.UpsertItem(ctx, "u1", domain.Item{ProductID: "p1", Quantity: 1}))
	require.NoError(t, s.UpsertItem(ctx, "u1", domain.Item{ProductID: "p1", Quantity: 5}))

	records, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(5), records[0].Quantity)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore()

	require.NoError(t, s.DeleteItem(ctx, "u1", "ghost"))
	require.NoError(t, s.DeleteAll(ctx, "u1"))
}

func TestRowsAreScopedPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore()

	require.NoError(t, s.UpsertItem(ctx, "u1", domain.Item{ProductID: "p1", Quantity: 1}))
	require.NoError(t, s.UpsertItem(ctx, "u2", domain.Item{ProductID: "p1", Quantity: 9}))
	require.NoError(t, s.DeleteAll(ctx, "u1"))

	u1, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u1)

	u2, err := s.ListItems(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, u2, 1)
	assert.Equal(t, int32(9), u2[0].Quantity)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	_, found, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	want := domain.Snapshot{Items: []domain.Item{{ProductID: "p1", Quantity: 2}}}
	require.NoError(t, s.Save(ctx, want))

	got, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Items, got.Items)

	require.NoError(t, s.Clear(ctx))
	_, found, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
