// Package storefront wires one cart and checkout flow per shopper session.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/inviteu/internal/auth"
	"github.com/fjod/inviteu/internal/cart"
	"github.com/fjod/inviteu/internal/checkout"
	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/events"
	"github.com/fjod/inviteu/internal/journal"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/notify"
	"github.com/fjod/inviteu/internal/payment"
	"github.com/fjod/inviteu/internal/request"
	"github.com/fjod/inviteu/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidSession = errors.New("invalid session id")

const (
	maxSessionIDLen = 128
	notificationCap = 50

	DefaultSessionIdleTimeout = 30 * time.Minute
)

// Publisher announces storefront events. Both checkout and request capture use it.
type Publisher interface {
	checkout.OrderPublisher
	request.Publisher
}

// Session is everything one shopper interacts with.
type Session struct {
	ID            string
	Cart          *cart.Cart
	Checkout      *checkout.Checkout
	Auth          *auth.Session
	Notifications *notify.Recorder
	// Requests shares the registry's request log and reports to Notifications.
	Requests *request.Service

	lastUsed atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

type Config struct {
	TaxRate        decimal.Decimal
	PaymentTimeout time.Duration
	// SessionIdleTimeout is how long an unused session stays in memory. Its cart stays in the store.
	SessionIdleTimeout time.Duration
}

// Registry creates sessions on first use and drops them from memory once idle.
// Orders and requests are shared journals; carts are stored per session under cart:<id>.
type Registry struct {
	store     store.Store
	catalog   cart.Catalog
	gateway   payment.Gateway
	publisher Publisher
	orders    *journal.Journal[domain.Order]
	requests  *request.Service
	bus       *events.Bus
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group
}

func NewRegistry(s store.Store, c cart.Catalog, gateway payment.Gateway, pub Publisher, bus *events.Bus, cfg Config, l *zap.Logger) *Registry {
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = checkout.DefaultPaymentTimeout
	}
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	orders := journal.New[domain.Order](s, journal.KeyOrders)
	requests := request.New(
		journal.New[domain.RequestRecord](s, journal.KeyRequests),
		request.WithPublisher(pub),
		request.WithNotifier(notify.NewLogNotifier(l)),
		request.WithLogger(l),
	)
	return &Registry{
		store:     s,
		catalog:   c,
		gateway:   gateway,
		publisher: pub,
		orders:    orders,
		requests:  requests,
		bus:       bus,
		cfg:       cfg,
		logger:    l,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the session with the given id, loading its cart on first use.
// Concurrent first calls for one id share a single load.
func (r *Registry) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" || len(id) > maxSessionIDLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}

	// touched under the read lock so Sweep never sees a stale timestamp
	r.mu.RLock()
	sess, ok := r.sessions[id]
	if ok {
		sess.touch(r.now())
	}
	r.mu.RUnlock()
	if ok {
		return sess, nil
	}

	v, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.sessions[id]
		if ok {
			existing.touch(r.now())
		}
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		sess, err := r.open(ctx, id)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		sess.touch(r.now())
		r.sessions[id] = sess
		r.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout and returns how many it dropped.
// Sessions with a payment in flight are kept.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, sess := range r.sessions {
		if sess.idleSince(now) < r.cfg.SessionIdleTimeout {
			continue
		}
		if sess.Checkout.State() == domain.CheckoutStateProcessing {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("idle sessions evicted", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Requests is the shared request capture service, used to list every submitted request.
func (r *Registry) Requests() *request.Service {
	return r.requests
}

// OrdersForUser lists the recorded orders placed by userID, oldest first.
func (r *Registry) OrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	all, err := r.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *Registry) open(ctx context.Context, id string) (*Session, error) {
	log := logger.WithContext(ctx, r.logger).With(zap.String("session_id", id))
	recorder := notify.NewRecorder(notificationCap, notify.NewLogNotifier(log))
	session := auth.NewSession()

	c := cart.New(r.store, r.catalog,
		cart.WithKey(cart.DefaultKey+":"+id),
		cart.WithBus(r.bus),
		cart.WithNotifier(recorder),
		cart.WithLogger(log),
	)
	if err := c.Load(ctx); err != nil {
		if !errors.Is(err, cart.ErrCorruptState) {
			return nil, fmt.Errorf("open session %s: %w", id, err)
		}
		recorder.Notify("Your saved cart could not be restored", notify.SeverityWarning)
	}

	co := checkout.New(c, session, r.gateway, r.orders, r.cfg.TaxRate,
		checkout.WithPaymentTimeout(r.cfg.PaymentTimeout),
		checkout.WithPublisher(r.publisher),
		checkout.WithBus(r.bus),
		checkout.WithNotifier(recorder),
		checkout.WithLogger(log),
	)

	log.Debug("session opened", zap.Int("cart_lines", c.Len()))
	return &Session{
		ID:            id,
		Cart:          c,
		Checkout:      co,
		Auth:          session,
		Notifications: recorder,
		Requests:      r.requests.Notifying(recorder),
	}, nil
}
