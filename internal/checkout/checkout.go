package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/events"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/money"
	"github.com/fjod/inviteu/internal/notify"
	"github.com/fjod/inviteu/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPaymentTimeout = 10 * time.Second

// Cart is the part of the shopping cart checkout reads and clears.
type Cart interface {
	Snapshot() ([]domain.LineItem, int64)
	Clear(ctx context.Context) error
}

// Auth answers whether the shopper is signed in.
type Auth interface {
	IsAuthenticated() bool
	CurrentUserID() (string, bool)
}

// OrderLog is the append-only record of completed orders.
type OrderLog interface {
	Append(ctx context.Context, order domain.Order) error
	List(ctx context.Context) ([]domain.Order, error)
}

// OrderPublisher announces completed orders to downstream consumers.
type OrderPublisher interface {
	PublishOrderCompleted(ctx context.Context, order domain.Order) error
}

// Checkout walks one shopper through summary, method selection and payment.
// mu guards the flow state; the gateway call runs without it while the state is processing.
type Checkout struct {
	mu       sync.Mutex
	state    domain.CheckoutState
	snapshot domain.OrderSnapshot
	method   domain.PaymentMethod

	cart      Cart
	auth      Auth
	gateway   payment.Gateway
	orders    OrderLog
	taxRate   decimal.Decimal
	timeout   time.Duration
	publisher OrderPublisher
	bus       *events.Bus
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Checkout)

func WithPaymentTimeout(d time.Duration) Option {
	return func(c *Checkout) { c.timeout = d }
}

func WithPublisher(p OrderPublisher) Option {
	return func(c *Checkout) { c.publisher = p }
}

func WithBus(bus *events.Bus) Option {
	return func(c *Checkout) { c.bus = bus }
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Checkout) { c.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Checkout) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Checkout) { c.now = now }
}

func New(cart Cart, auth Auth, gateway payment.Gateway, orders OrderLog, taxRate decimal.Decimal, opts ...Option) *Checkout {
	c := &Checkout{
		state:    domain.CheckoutStateIdle,
		cart:     cart,
		auth:     auth,
		gateway:  gateway,
		orders:   orders,
		taxRate:  taxRate,
		timeout:  DefaultPaymentTimeout,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checkout) State() domain.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the summary computed when the checkout view was last entered.
func (c *Checkout) Snapshot() domain.OrderSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySnapshot(c.snapshot)
}

func (c *Checkout) Method() domain.PaymentMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

func (c *Checkout) TaxRate() decimal.Decimal {
	return c.taxRate
}

// LoadSummary enters the checkout view and prices the current cart.
func (c *Checkout) LoadSummary(ctx context.Context) (domain.OrderSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.CheckoutStateProcessing {
		return domain.OrderSnapshot{}, ErrAlreadyProcessing
	}
	if !domain.CanTransitionTo(c.state, domain.CheckoutStateSummaryLoaded) {
		return domain.OrderSnapshot{}, illegal(c.state, domain.CheckoutStateSummaryLoaded)
	}

	snapshot := c.price()
	if snapshot.IsEmpty() {
		c.notifier.Notify("Your cart is empty", notify.SeverityWarning)
		c.snapshot = domain.OrderSnapshot{}
		c.method = ""
		c.setState(domain.CheckoutStateIdle)
		return domain.OrderSnapshot{}, ErrEmptyCart
	}

	c.snapshot = snapshot
	c.method = ""
	c.setState(domain.CheckoutStateSummaryLoaded)
	logger.WithContext(ctx, c.logger).Debug("checkout summary loaded",
		zap.Int("lines", len(snapshot.Items)),
		zap.Int64("total", snapshot.Total))
	return copySnapshot(snapshot), nil
}

// SelectPaymentMethod records the one method used for the next payment attempt.
func (c *Checkout) SelectPaymentMethod(method domain.PaymentMethod) error {
	if _, err := domain.ParsePaymentMethod(string(method)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.CheckoutStateProcessing {
		return ErrAlreadyProcessing
	}
	if !domain.CanTransitionTo(c.state, domain.CheckoutStatePaymentMethodSelected) {
		return illegal(c.state, domain.CheckoutStatePaymentMethodSelected)
	}

	c.method = method
	c.setState(domain.CheckoutStatePaymentMethodSelected)
	return nil
}

// ProcessPayment charges the cart and, on success, records the order and empties the cart.
// The shopper is the Auth the checkout was built with.
func (c *Checkout) ProcessPayment(ctx context.Context) (domain.Order, error) {
	return c.ProcessPaymentAs(ctx, c.auth)
}

// ProcessPaymentAs is ProcessPayment for the shopper identified by who.
// The user id is read once, before the charge, and stamped on the order.
func (c *Checkout) ProcessPaymentAs(ctx context.Context, who Auth) (domain.Order, error) {
	log := logger.WithContext(ctx, c.logger)

	snapshot, method, userID, err := c.begin(who)
	if err != nil {
		return domain.Order{}, err
	}

	orderID := uuid.New()
	chargeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, payErr := c.gateway.Charge(chargeCtx, payment.Charge{
		OrderID: orderID.String(),
		Amount:  snapshot.Total,
		Method:  method,
	})
	if payErr != nil {
		log.Warn("payment failed", zap.String("order_id", orderID.String()), zap.Error(payErr))
		c.fail()
		return domain.Order{}, fmt.Errorf("%w: %w", ErrPaymentFailed, payErr)
	}

	order := domain.Order{
		ID:            orderID,
		Items:         snapshot.Items,
		Subtotal:      snapshot.Subtotal,
		Tax:           snapshot.Tax,
		Total:         snapshot.Total,
		PaymentMethod: method,
		TransactionID: res.TransactionID,
		Status:        domain.OrderStatusCompleted,
		UserID:        userID,
		CreatedAt:     c.now().UTC(),
	}

	if err := c.complete(ctx, order); err != nil {
		return domain.Order{}, err
	}

	log.Info("order completed",
		zap.String("order_id", order.ID.String()),
		zap.String("transaction_id", order.TransactionID),
		zap.Int64("total", order.Total))
	return order, nil
}

// Reset starts a new flow. Not allowed while a payment is in flight.
func (c *Checkout) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.CheckoutStateProcessing {
		return ErrAlreadyProcessing
	}
	c.snapshot = domain.OrderSnapshot{}
	c.method = ""
	if c.state != domain.CheckoutStateIdle {
		c.setState(domain.CheckoutStateIdle)
	}
	return nil
}

// Orders lists every recorded order.
func (c *Checkout) Orders(ctx context.Context) ([]domain.Order, error) {
	return c.orders.List(ctx)
}

// begin moves to processing after re-checking every precondition.
// It returns the priced snapshot, the chosen method and the payer's user id.
func (c *Checkout) begin(who Auth) (domain.OrderSnapshot, domain.PaymentMethod, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.CheckoutStateProcessing:
		return domain.OrderSnapshot{}, "", "", ErrAlreadyProcessing
	case domain.CheckoutStateSummaryLoaded:
		return domain.OrderSnapshot{}, "", "", ErrPaymentMethodRequired
	}
	if !domain.CanTransitionTo(c.state, domain.CheckoutStateProcessing) {
		return domain.OrderSnapshot{}, "", "", illegal(c.state, domain.CheckoutStateProcessing)
	}

	var userID string
	if who == nil || !who.IsAuthenticated() {
		c.notifier.Notify("You must sign in to continue", notify.SeverityWarning)
		return domain.OrderSnapshot{}, "", "", ErrNotAuthenticated
	}

	if id, ok := who.CurrentUserID(); ok {
		userID = id
	}

	// the cart may have changed since the summary was shown
	snapshot := c.price()
	if snapshot.IsEmpty() {
		c.notifier.Notify("Your cart is empty", notify.SeverityWarning)
		c.snapshot = domain.OrderSnapshot{}
		c.method = ""
		c.setState(domain.CheckoutStateIdle)
		return domain.OrderSnapshot{}, "", "", ErrEmptyCart
	}

	c.snapshot = snapshot
	c.setState(domain.CheckoutStateProcessing)
	return copySnapshot(snapshot), c.method, userID, nil
}

func (c *Checkout) complete(ctx context.Context, order domain.Order) error {
	log := logger.WithContext(ctx, c.logger)

	if err := c.orders.Append(ctx, order); err != nil {
		log.Error("order not recorded after successful charge",
			zap.String("order_id", order.ID.String()),
			zap.String("transaction_id", order.TransactionID),
			zap.Error(err))
		c.fail()
		return fmt.Errorf("record order: %w", err)
	}

	// Clear always empties memory; a failed write is logged and the next mutation rewrites the blob.
	if err := c.cart.Clear(ctx); err != nil {
		log.Error("cart cleared in memory only", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	c.mu.Lock()
	c.setState(domain.CheckoutStateCompleted)
	c.mu.Unlock()

	c.notifier.Notify("Payment processed successfully", notify.SeveritySuccess)

	if c.publisher != nil {
		if err := c.publisher.PublishOrderCompleted(ctx, order); err != nil {
			log.Warn("order event not published", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (c *Checkout) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(domain.CheckoutStateFailed)
	c.notifier.Notify("The payment could not be completed", notify.SeverityError)
}

// price builds a snapshot of the cart as it is now. Caller holds mu.
func (c *Checkout) price() domain.OrderSnapshot {
	items, subtotal := c.cart.Snapshot()
	tax := money.Tax(subtotal, c.taxRate)
	return domain.OrderSnapshot{
		Items:    items,
		Subtotal: subtotal,
		TaxRate:  c.taxRate,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// setState records the new state and fires the render trigger. Caller holds mu.
func (c *Checkout) setState(s domain.CheckoutState) {
	c.state = s
	c.bus.CheckoutStateChanged(s)
}

func copySnapshot(s domain.OrderSnapshot) domain.OrderSnapshot {
	if s.Items != nil {
		s.Items = domain.CopyItems(s.Items)
	}
	return s
}

func illegal(from, to domain.CheckoutState) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// IsRecoverable reports whether the caller can retry the flow after err.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrAlreadyProcessing) ||
		errors.Is(err, ErrPaymentFailed) ||
		errors.Is(err, ErrPaymentMethodRequired)
}
