// Package postgres implements the authoritative remote cart replica on a
// single table keyed by (user_id, product_id). Concurrent devices write the
// same rows; every statement is an idempotent upsert or delete with
// last-write-wins on updated_at.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
)

var _ app.RemoteStore = (*RemoteStore)(nil)

const (
	listItemsSQL = `
		SELECT user_id, product_id, product_name, product_price, product_image, quantity, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY updated_at, product_id`

	upsertItemSQL = `
		INSERT INTO cart_items (user_id, product_id, product_name, product_price, product_image, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET product_name  = EXCLUDED.product_name,
		    product_price = EXCLUDED.product_price,
		    product_image = EXCLUDED.product_image,
		    quantity      = EXCLUDED.quantity,
		    updated_at    = EXCLUDED.updated_at
		WHERE cart_items.updated_at <= EXCLUDED.updated_at`

	deleteItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	deleteAllSQL  = `DELETE FROM cart_items WHERE user_id = $1`
)

type RemoteStore struct {
	db *sql.DB
}

func NewRemoteStore(db *sql.DB) *RemoteStore {
	return &RemoteStore{db: db}
}

func (s *RemoteStore) ListItems(ctx context.Context, userID string) ([]domain.RemoteRecord, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id %q", app.ErrInvalidMutation, userID)
	}

	rows, err := s.db.QueryContext(ctx, listItemsSQL, userUUID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %v: %w", err, app.ErrRemoteUnavailable)
	}
	defer rows.Close()

	var records []domain.RemoteRecord
	for rows.Next() {
		var (
			uid uuid.UUID
			r   domain.RemoteRecord
		)
		if err := rows.Scan(&uid, &r.ProductID, &r.Name, &r.UnitPrice, &r.ImageRef, &r.Quantity, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %v: %w", err, app.ErrRemoteUnavailable)
		}
		r.UserID = uid.String()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cart items: %v: %w", err, app.ErrRemoteUnavailable)
	}
	return records, nil
}

func (s *RemoteStore) UpsertItem(ctx context.Context, userID string, item domain.Item) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: bad user id %q", app.ErrInvalidMutation, userID)
	}

	_, err = s.db.ExecContext(ctx, upsertItemSQL,
		userUUID, item.ProductID, item.Name, item.UnitPrice, item.ImageRef, item.Quantity)
	if err != nil {
		return fmt.Errorf("upsert cart item %s: %v: %w", item.ProductID, err, app.ErrRemoteUnavailable)
	}
	return nil
}

func (s *RemoteStore) DeleteItem(ctx context.Context, userID, productID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: bad user id %q", app.ErrInvalidMutation, userID)
	}

	_, err = s.db.ExecContext(ctx, deleteItemSQL, userUUID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item %s: %v: %w", productID, err, app.ErrRemoteUnavailable)
	}
	return nil
}

func (s *RemoteStore) DeleteAll(ctx context.Context, userID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: bad user id %q", app.ErrInvalidMutation, userID)
	}

	_, err = s.db.ExecContext(ctx, deleteAllSQL, userUUID)
	if err != nil {
		return fmt.Errorf("delete cart: %v: %w", err, app.ErrRemoteUnavailable)
	}
	return nil
}
