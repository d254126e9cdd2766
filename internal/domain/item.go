package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidKind = errors.New("invalid item kind")

// ItemKind distinguishes invitation templates from service packages.
type ItemKind string

const (
	KindTemplate ItemKind = "template"
	KindPackage  ItemKind = "package"
)

func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case KindTemplate, KindPackage:
		return ItemKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k ItemKind) String() string {
	return string(k)
}

// CatalogEntry is the read-only view of a purchasable item.
// For packages UnitPrice is the maximum tier price; MinPrice is only shown to buyers.
type CatalogEntry struct {
	ID        string   `json:"id"`
	Kind      ItemKind `json:"type"`
	Name      string   `json:"name"`
	UnitPrice int64    `json:"price"`
	MinPrice  int64    `json:"min_price,omitempty"`
}

// LineItem is one catalog entry plus a quantity inside a cart.
type LineItem struct {
	ID        string   `json:"id"`
	Kind      ItemKind `json:"type"`
	Name      string   `json:"name"`
	UnitPrice int64    `json:"price"`
	Quantity  int      `json:"quantity"`
}

// Matches reports whether the item carries the (id, kind) key.
func (i LineItem) Matches(id string, kind ItemKind) bool {
	return i.ID == id && i.Kind == kind
}

func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CopyItems returns a deep copy so callers never share the cart's backing array.
func CopyItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
