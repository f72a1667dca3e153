// Package bolt persists the device-local cart replica: one JSON-serialized
// snapshot under a fixed bucket/key, surviving restarts of this device only.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
)

var _ app.LocalStore = (*LocalStore)(nil)

var (
	bucketName  = []byte("cart")
	snapshotKey = []byte("snapshot")
)

type storedItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"product_name"`
	UnitPrice int64  `json:"product_price"`
	ImageRef  string `json:"product_image"`
	Quantity  int32  `json:"quantity"`
}

type LocalStore struct {
	db *bbolt.DB
}

func Open(path string) (*LocalStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local cart store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init local cart store: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) Load(_ context.Context) (domain.Snapshot, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(snapshotKey); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("load local cart: %w", err)
	}
	if raw == nil {
		return domain.Snapshot{}, false, nil
	}

	var stored []storedItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode local cart: %w", err)
	}
	items := make([]domain.Item, len(stored))
	for i, it := range stored {
		items[i] = domain.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			ImageRef:  it.ImageRef,
			Quantity:  it.Quantity,
		}
	}
	return domain.Snapshot{Items: items}, true, nil
}

func (s *LocalStore) Save(_ context.Context, snap domain.Snapshot) error {
	stored := make([]storedItem, len(snap.Items))
	for i, it := range snap.Items {
		stored[i] = storedItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			ImageRef:  it.ImageRef,
			Quantity:  it.Quantity,
		}
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(snapshotKey, raw)
	})
	if err != nil {
		return fmt.Errorf("save local cart: %w", err)
	}
	return nil
}

func (s *LocalStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(snapshotKey)
	})
	if err != nil {
		return fmt.Errorf("clear local cart: %w", err)
	}
	return nil
}
