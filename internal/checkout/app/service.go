package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/littlelayers/cartsync/internal/cart/domain"
)

var ErrEmptyCart = errors.New("cart is empty")

// Cart is the slice of the engine this mock checkout needs.
type Cart interface {
	Snapshot() domain.Snapshot
	Clear(ctx context.Context) (domain.Snapshot, error)
}

type Money struct {
	Amount int64 `json:"amount"`
}

type QuoteLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
	LineTotal Money  `json:"line_total"`
}

type Quote struct {
	Lines      []QuoteLine `json:"lines"`
	TotalItems int32       `json:"total_items"`
	Total      Money       `json:"total"`
}

type Receipt struct {
	Reference string    `json:"reference"`
	Total     Money     `json:"total"`
	PlacedAt  time.Time `json:"placed_at"`
}

// Service is the mock checkout: it prices the current snapshot and, on
// place-order, clears the cart through the engine. Nothing is persisted.
type Service struct {
	cart Cart
}

func NewService(cart Cart) *Service {
	return &Service{cart: cart}
}

func (s *Service) Quote(ctx context.Context) (Quote, error) {
	snap := s.cart.Snapshot()
	if snap.Empty() {
		return Quote{}, ErrEmptyCart
	}

	lines := make([]QuoteLine, len(snap.Items))
	for i, it := range snap.Items {
		lines[i] = QuoteLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: Money{Amount: it.UnitPrice},
			LineTotal: Money{Amount: it.UnitPrice * int64(it.Quantity)},
		}
	}
	return Quote{
		Lines:      lines,
		TotalItems: snap.TotalItems(),
		Total:      Money{Amount: snap.TotalPrice()},
	}, nil
}

// PlaceOrder empties the cart on both replicas and hands back a reference.
func (s *Service) PlaceOrder(ctx context.Context) (Receipt, error) {
	snap := s.cart.Snapshot()
	if snap.Empty() {
		return Receipt{}, ErrEmptyCart
	}
	total := snap.TotalPrice()

	if _, err := s.cart.Clear(ctx); err != nil {
		return Receipt{}, err
	}
	return Receipt{
		Reference: uuid.NewString(),
		Total:     Money{Amount: total},
		PlacedAt:  time.Now(),
	}, nil
}
