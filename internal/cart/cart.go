package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/inviteu/internal/catalog"
	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/events"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/notify"
	"github.com/fjod/inviteu/internal/store"
	"go.uber.org/zap"
)

var (
	ErrUnknownItem  = errors.New("item not found in catalog")
	ErrCorruptState = errors.New("persisted cart is unreadable")
)

// DefaultKey is the store key of a single-shopper cart.
const DefaultKey = "cart"

// Catalog resolves (id, kind) pairs to purchasable entries.
// Consumers define this interface, not the catalog implementations.
type Catalog interface {
	FindTemplate(ctx context.Context, id string) (domain.CatalogEntry, error)
	FindPackage(ctx context.Context, id string) (domain.CatalogEntry, error)
}

// Cart owns the shopper's line items and keeps them in sync with the store.
// Every mutation holds mu across the in-memory update and the store write.
type Cart struct {
	mu       sync.Mutex
	items    []domain.LineItem
	store    store.Store
	catalog  Catalog
	key      string
	bus      *events.Bus
	notifier notify.Notifier
	logger   *zap.Logger
}

type Option func(*Cart)

func WithKey(key string) Option {
	return func(c *Cart) { c.key = key }
}

func WithBus(bus *events.Bus) Option {
	return func(c *Cart) { c.bus = bus }
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Cart) { c.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cart) { c.logger = l }
}

func New(s store.Store, c Catalog, opts ...Option) *Cart {
	cart := &Cart{
		store:    s,
		catalog:  c,
		key:      DefaultKey,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cart)
	}
	return cart
}

func (c *Cart) Key() string {
	return c.key
}

// Load replaces the in-memory items with the persisted cart.
// An unreadable blob resets the cart to empty and returns ErrCorruptState.
func (c *Cart) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.store.Get(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		c.items = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart failed: %w", err)
	}

	items, err := decodeItems(data)
	if err != nil {
		c.items = nil
		logger.WithContext(ctx, c.logger).Warn("resetting unreadable cart",
			zap.String("key", c.key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	c.items = items
	c.bus.CartChanged()
	return nil
}

// AddItem puts one unit of the catalog entry in the cart, merging with an existing line.
func (c *Cart) AddItem(ctx context.Context, id string, kind domain.ItemKind) (domain.LineItem, error) {
	entry, err := c.lookup(ctx, id, kind)
	if err != nil {
		if errors.Is(err, ErrUnknownItem) {
			c.notifier.Notify("Could not add the item to the cart", notify.SeverityError)
		}
		return domain.LineItem{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := domain.CopyItems(c.items)
	var added domain.LineItem
	if i := indexOf(next, id, kind); i >= 0 {
		next[i].Quantity++
		added = next[i]
	} else {
		added = domain.LineItem{
			ID:        entry.ID,
			Kind:      entry.Kind,
			Name:      entry.Name,
			UnitPrice: entry.UnitPrice,
			Quantity:  1,
		}
		next = append(next, added)
	}

	if err := c.commit(ctx, next); err != nil {
		return domain.LineItem{}, err
	}
	c.notifier.Notify(fmt.Sprintf("%q added to the cart", added.Name), notify.SeveritySuccess)
	return added, nil
}

// RemoveItem drops the matching line. Removing an absent line is not an error.
func (c *Cart) RemoveItem(ctx context.Context, id string, kind domain.ItemKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, id, kind)
}

// UpdateQuantity sets an absolute quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, id string, kind domain.ItemKind, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.items, id, kind)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		return c.removeLocked(ctx, id, kind)
	}

	next := domain.CopyItems(c.items)
	next[i].Quantity = quantity
	return c.commit(ctx, next)
}

// Clear empties the cart. The in-memory list is emptied even when the store write fails.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.bus.CartChanged()
	if err := c.persist(ctx, nil); err != nil {
		logger.WithContext(ctx, c.logger).Error("clear cart not persisted",
			zap.String("key", c.key), zap.Error(err))
		return err
	}
	return nil
}

// Total is the sum of unit price times quantity, computed on every call.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return total(c.items)
}

func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CopyItems(c.items)
}

// Snapshot returns the items and their total read under one lock.
func (c *Cart) Snapshot() ([]domain.LineItem, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CopyItems(c.items), total(c.items)
}

func (c *Cart) lookup(ctx context.Context, id string, kind domain.ItemKind) (domain.CatalogEntry, error) {
	var (
		entry domain.CatalogEntry
		err   error
	)
	switch kind {
	case domain.KindTemplate:
		entry, err = c.catalog.FindTemplate(ctx, id)
	case domain.KindPackage:
		entry, err = c.catalog.FindPackage(ctx, id)
	default:
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s %q", ErrUnknownItem, kind, id)
	}

	if errors.Is(err, catalog.ErrNotFound) {
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s %q", ErrUnknownItem, kind, id)
	}
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("catalog lookup failed: %w", err)
	}
	return entry, nil
}

func (c *Cart) removeLocked(ctx context.Context, id string, kind domain.ItemKind) error {
	next := make([]domain.LineItem, 0, len(c.items))
	for _, item := range c.items {
		if !item.Matches(id, kind) {
			next = append(next, item)
		}
	}
	return c.commit(ctx, next)
}

// commit persists next and only then makes it the in-memory state. Caller holds mu.
func (c *Cart) commit(ctx context.Context, next []domain.LineItem) error {
	if err := c.persist(ctx, next); err != nil {
		return err
	}
	c.items = next
	c.bus.CartChanged()
	return nil
}

func (c *Cart) persist(ctx context.Context, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("persist cart failed: %w", err)
	}
	return nil
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("line %s/%s has quantity %d", item.Kind, item.ID, item.Quantity)
		}
		if _, err := domain.ParseItemKind(string(item.Kind)); err != nil {
			return nil, err
		}
		key := string(item.Kind) + "/" + item.ID
		if seen[key] {
			return nil, fmt.Errorf("duplicate line %s", key)
		}
		seen[key] = true
	}
	return items, nil
}

func indexOf(items []domain.LineItem, id string, kind domain.ItemKind) int {
	for i, item := range items {
		if item.Matches(id, kind) {
			return i
		}
	}
	return -1
}

func total(items []domain.LineItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.Subtotal()
	}
	return sum
}
