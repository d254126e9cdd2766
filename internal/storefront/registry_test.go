package storefront

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/inviteu/internal/auth"
	"github.com/fjod/inviteu/internal/cart"
	"github.com/fjod/inviteu/internal/catalog"
	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/events"
	"github.com/fjod/inviteu/internal/payment"
	"github.com/fjod/inviteu/internal/request"
	"github.com/fjod/inviteu/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts reads so tests can see how often a cart is loaded
type countingStore struct {
	*store.MemoryStore
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	return c.MemoryStore.Get(ctx, key)
}

func newTestRegistry(t *testing.T, s store.Store) *Registry {
	t.Helper()
	return NewRegistry(s, catalog.Default(), payment.NewSimulator(0), nil, events.NewBus(),
		Config{TaxRate: decimal.RequireFromString("0.10")}, nil)
}

func TestSession_CreatedOnce(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())
	ctx := context.Background()

	a, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	b, err := r.Session(ctx, "s1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "cart:s1", a.Cart.Key())
	assert.Equal(t, 1, r.Len())
}

func TestSession_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	r := newTestRegistry(t, s)

	var wg sync.WaitGroup
	sessions := make([]*Session, 20)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := r.Session(context.Background(), "shared")
			assert.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	for _, sess := range sessions {
		assert.Same(t, sessions[0], sess)
	}
	assert.Equal(t, int32(1), s.gets.Load())
}

func TestSession_InvalidID(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())

	_, err := r.Session(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = r.Session(context.Background(), strings.Repeat("x", maxSessionIDLen+1))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSession_RestoresPersistedCart(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first := newTestRegistry(t, s)
	sess, err := first.Session(ctx, "s1")
	require.NoError(t, err)
	_, err = sess.Cart.AddItem(ctx, "boda-elegante", domain.KindTemplate)
	require.NoError(t, err)

	restarted := newTestRegistry(t, s)
	sess, err = restarted.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(299), sess.Cart.Total())

	other, err := restarted.Session(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, other.Cart.Len(), "carts are per session")
}

func TestSession_CorruptCartStartsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, cart.DefaultKey+":s1", []byte(`{not json`)))

	r := newTestRegistry(t, s)
	sess, err := r.Session(ctx, "s1")
	require.NoError(t, err)

	assert.Zero(t, sess.Cart.Len())
	msgs := sess.Notifications.Drain()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "could not be restored")
}

func TestEndToEnd_CheckoutThenRequest(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())
	ctx := context.Background()

	sess, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	sess.Auth.SignIn("user-1")

	_, err = sess.Cart.AddItem(ctx, "intermedio", domain.KindPackage)
	require.NoError(t, err)
	_, err = sess.Checkout.LoadSummary(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Checkout.SelectPaymentMethod(domain.PaymentMethodPayPal))
	order, err := sess.Checkout.ProcessPayment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(549), order.Total)

	record, err := sess.Requests.Submit(ctx, sess.Auth, request.Form{
		CoupleNames:    "Ana & Luis",
		EventDate:      "2026-06-20",
		EventLocation:  "Sevilla",
		ContactEmail:   "ana@example.com",
		WhatsappNumber: "+34 600 000 000",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)

	all, err := r.Requests().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, record.ID, all[0].ID)

	mine, err := r.OrdersForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	theirs, err := r.OrdersForUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestSession_RequestNotificationsReachSession(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())
	ctx := context.Background()

	sess, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	other, err := r.Session(ctx, "s2")
	require.NoError(t, err)

	_, err = sess.Requests.Submit(ctx, auth.Identity{}, request.Form{CoupleNames: "Ana & Luis"})
	require.ErrorIs(t, err, request.ErrMissingFields)

	msgs := sess.Notifications.Drain()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Required fields: eventDate")
	assert.Empty(t, other.Notifications.Drain())
}

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	s := store.NewMemoryStore()
	r := newTestRegistry(t, s)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	ctx := context.Background()

	idle, err := r.Session(ctx, "idle")
	require.NoError(t, err)
	_, err = idle.Cart.AddItem(ctx, "boda-elegante", domain.KindTemplate)
	require.NoError(t, err)

	clock.Advance(DefaultSessionIdleTimeout / 2)
	_, err = r.Session(ctx, "active")
	require.NoError(t, err)

	clock.Advance(DefaultSessionIdleTimeout/2 + time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	restored, err := r.Session(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, restored)
	assert.Equal(t, int64(299), restored.Cart.Total(), "cart survives eviction in the store")
}

func TestSweep_UseResetsIdleTime(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	ctx := context.Background()

	first, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	clock.Advance(DefaultSessionIdleTimeout - time.Second)
	_, err = r.Session(ctx, "s1")
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	assert.Zero(t, r.Sweep())
	again, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

// blockingGateway holds every charge until release is closed
type blockingGateway struct {
	release chan struct{}
}

func (g *blockingGateway) Charge(ctx context.Context, charge payment.Charge) (payment.Result, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return payment.Result{}, ctx.Err()
	}
	return payment.Result{TransactionID: string(charge.Method) + "_1", Method: charge.Method}, nil
}

func TestSweep_KeepsSessionWithPaymentInFlight(t *testing.T) {
	gateway := &blockingGateway{release: make(chan struct{})}
	r := NewRegistry(store.NewMemoryStore(), catalog.Default(), gateway, nil, events.NewBus(),
		Config{TaxRate: decimal.RequireFromString("0.10")}, nil)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	ctx := context.Background()

	sess, err := r.Session(ctx, "paying")
	require.NoError(t, err)
	_, err = sess.Cart.AddItem(ctx, "boda-elegante", domain.KindTemplate)
	require.NoError(t, err)
	_, err = sess.Checkout.LoadSummary(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Checkout.SelectPaymentMethod(domain.PaymentMethodStripe))

	done := make(chan error, 1)
	go func() {
		_, err := sess.Checkout.ProcessPaymentAs(ctx, auth.Identity{UserID: "user-1"})
		done <- err
	}()
	require.Eventually(t, func() bool {
		return sess.Checkout.State() == domain.CheckoutStateProcessing
	}, time.Second, 5*time.Millisecond)

	clock.Advance(DefaultSessionIdleTimeout + time.Minute)
	assert.Zero(t, r.Sweep())

	close(gateway.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, r.Sweep())
}

func TestRunSweeper_StopsWithContext(t *testing.T) {
	r := newTestRegistry(t, store.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		r.RunSweeper(ctx, time.Millisecond)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
