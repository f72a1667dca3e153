package domain

import "time"

// Item is one line of a cart. Prices are integer minor units (cents);
// ProductID is the stable catalog key and is unique within a snapshot.
type Item struct {
	ProductID string
	Name      string
	UnitPrice int64
	ImageRef  string
	Quantity  int32
}

// Snapshot is the full ordered set of cart items at a point in time.
// Order is insertion order; it matters for presentation only.
type Snapshot struct {
	Items []Item
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Find returns the index of the item with the given product id, or -1.
func (s Snapshot) Find(productID string) int {
	for i, it := range s.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s Snapshot) TotalItems() int32 {
	var n int32
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s Snapshot) TotalPrice() int64 {
	var total int64
	for _, it := range s.Items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// Clone returns a deep copy, so callers can hold a snapshot while the
// engine keeps mutating its own.
func (s Snapshot) Clone() Snapshot {
	if len(s.Items) == 0 {
		return Snapshot{}
	}
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	return Snapshot{Items: items}
}

// Identity is the session identity the engine gates remote access on.
// The zero value is anonymous.
type Identity struct {
	UserID string
}

func Anonymous() Identity {
	return Identity{}
}

func Authenticated(userID string) Identity {
	return Identity{UserID: userID}
}

func (id Identity) IsAuthenticated() bool {
	return id.UserID != ""
}

// RemoteRecord is the remote-side row keyed by (user id, product id).
// Other devices may write these rows concurrently; UpdatedAt is the
// last-write timestamp used for last-write-wins on the remote side.
type RemoteRecord struct {
	UserID    string
	ProductID string
	Name      string
	UnitPrice int64
	ImageRef  string
	Quantity  int32
	UpdatedAt time.Time
}

// ItemFromRecord maps a remote row back into a cart item.
func ItemFromRecord(r RemoteRecord) Item {
	return Item{
		ProductID: r.ProductID,
		Name:      r.Name,
		UnitPrice: r.UnitPrice,
		ImageRef:  r.ImageRef,
		Quantity:  r.Quantity,
	}
}
