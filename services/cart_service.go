package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nischalstha-ns/e-commerce-sub001/events"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/notifier"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"go.uber.org/zap"
)

const (
	OpAdd      = "add"
	OpUpdate   = "update"
	OpRemove   = "remove"
	OpClear    = "clear"
	OpCheckout = "checkout"
)

// CheckoutIdempotencyTTL is how long a checkout idempotency key is honoured.
const CheckoutIdempotencyTTL = 24 * time.Hour

// MutationTimeout bounds the store and fan-out work of an accepted mutation,
// which no longer follows the caller's cancellation.
const MutationTimeout = 30 * time.Second

// CartService defines the cart reconciliation operations.
type CartService interface {
	// GetCart returns the owner's cart, or an unsaved empty cart.
	GetCart(ctx context.Context, ownerID string) (*models.Cart, error)
	// AddToCart accumulates quantity onto the matching line item or
	// appends a new one.
	AddToCart(ctx context.Context, ownerID string, req models.AddItemRequest) (*models.Cart, error)
	// UpdateCartItem sets the quantity of an existing line item; a
	// quantity <= 0 removes it and an unknown key is a no-op.
	UpdateCartItem(ctx context.Context, ownerID string, req models.UpdateItemRequest) (*models.Cart, error)
	// RemoveFromCart drops the matching line item if present.
	RemoveFromCart(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error)
	// ClearCart empties the cart, keeping the owner record.
	ClearCart(ctx context.Context, ownerID string) (*models.Cart, error)
	// Checkout emits a checkout event for the current items and clears the
	// cart. A repeated idempotency key replays the first result.
	Checkout(ctx context.Context, ownerID, idempotencyKey string) (*CheckoutResult, error)
}

// CheckoutResult describes an accepted checkout.
type CheckoutResult struct {
	EventID       string `json:"event_id"`
	ItemCount     int    `json:"item_count"`
	TotalQuantity int    `json:"total_quantity"`
	Replayed      bool   `json:"replayed"`
}

type cartServiceImpl struct {
	store     repository.CartStore
	notifier  notifier.Publisher
	publisher events.Publisher
	metrics   awspkg.MetricsRecorder
	idem      repository.IdempotencyStore
	locks     *ownerLocks
	now       func() time.Time
	logger    *zap.Logger
}

// Option customizes the cart service.
type Option func(*cartServiceImpl)

// WithClock overrides the time source used for addedAt.
func WithClock(now func() time.Time) Option {
	return func(s *cartServiceImpl) { s.now = now }
}

// WithIdempotencyStore enables Idempotency-Key handling on checkout.
func WithIdempotencyStore(idem repository.IdempotencyStore) Option {
	return func(s *cartServiceImpl) { s.idem = idem }
}

// NewCartService wires the engine to an injected store. notifier, publisher
// and metrics may be nil.
func NewCartService(
	store repository.CartStore,
	notif notifier.Publisher,
	publisher events.Publisher,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
	opts ...Option,
) CartService {
	s := &cartServiceImpl{
		store:     store,
		notifier:  notif,
		publisher: publisher,
		metrics:   metrics,
		locks:     newOwnerLocks(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *cartServiceImpl) GetCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	return s.load(ctx, ownerID)
}

func (s *cartServiceImpl) AddToCart(ctx context.Context, ownerID string, req models.AddItemRequest) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateProduct(req.ProductID); err != nil {
		return nil, err
	}
	qty, err := ParseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, quantityError("must be a positive integer")
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	cart, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items := mergeAdd(cart.Items, req.Key(), qty, s.now())

	saved, err := s.write(ctx, OpAdd, ownerID, items)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, OpAdd, saved)
	return saved, nil
}

func (s *cartServiceImpl) UpdateCartItem(ctx context.Context, ownerID string, req models.UpdateItemRequest) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateProduct(req.ProductID); err != nil {
		return nil, err
	}
	qty, err := ParseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	key := req.Key()

	ctx, cancel := detach(ctx)
	defer cancel()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	cart, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !containsKey(cart.Items, key) {
		return cart, nil
	}

	if qty <= 0 {
		saved, err := s.deleteLineItem(ctx, OpUpdate, ownerID, key)
		if err != nil {
			return nil, err
		}
		s.afterMutation(ctx, OpUpdate, saved)
		return saved, nil
	}

	items, _ := setQuantity(cart.Items, key, qty)
	saved, err := s.write(ctx, OpUpdate, ownerID, items)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, OpUpdate, saved)
	return saved, nil
}

func (s *cartServiceImpl) RemoveFromCart(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateProduct(key.ProductID); err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	cart, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !containsKey(cart.Items, key) {
		return cart, nil
	}

	saved, err := s.deleteLineItem(ctx, OpRemove, ownerID, key)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, OpRemove, saved)
	return saved, nil
}

func (s *cartServiceImpl) ClearCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	return s.clearLocked(ctx, OpClear, ownerID)
}

// clearLocked empties an existing cart. A missing cart stays missing.
func (s *cartServiceImpl) clearLocked(ctx context.Context, op, ownerID string) (*models.Cart, error) {
	start := time.Now()
	_, err := s.store.ReadCart(ctx, ownerID)
	s.observeStore(ctx, "read", start)
	if errors.Is(err, repository.ErrCartNotFound) {
		return models.NewEmptyCart(ownerID), nil
	}
	if err != nil {
		return nil, s.storeError(op, "read", err)
	}

	saved, err := s.write(ctx, op, ownerID, []models.CartLineItem{})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, op, saved)
	return saved, nil
}

func (s *cartServiceImpl) Checkout(ctx context.Context, ownerID, idempotencyKey string) (*CheckoutResult, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	cart, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	eventID := uuid.NewString()
	idemKey := ""
	if s.idem != nil && strings.TrimSpace(idempotencyKey) != "" {
		idemKey = ownerID + ":" + strings.TrimSpace(idempotencyKey)
		existing, reserved, err := s.idem.Reserve(ctx, idemKey, eventID, CheckoutIdempotencyTTL)
		if err != nil {
			return nil, s.storeError(OpCheckout, "idempotency", err)
		}
		if !reserved {
			s.logger.Info("checkout replayed", zap.String("user_id", ownerID), zap.String("event_id", existing))
			return &CheckoutResult{EventID: existing, Replayed: true}, nil
		}
	}

	if len(cart.Items) == 0 {
		s.releaseIdem(ctx, idemKey)
		return nil, &ValidationError{Field: "items", Reason: "cart is empty"}
	}

	evt := models.CheckoutEvent{
		EventID:   eventID,
		Event:     models.EventCheckoutRequested,
		UserID:    ownerID,
		Items:     models.CloneItems(cart.Items),
		Timestamp: s.now(),
	}
	if err := s.publisher.PublishCheckout(ctx, evt); err != nil {
		s.releaseIdem(ctx, idemKey)
		s.logger.Error("failed to publish checkout event", zap.String("user_id", ownerID), zap.Error(err))
		return nil, errors.Join(ErrEventPublish, err)
	}

	if _, err := s.clearLocked(ctx, OpCheckout, ownerID); err != nil {
		// the event is out, so the key stays reserved and a retry with it
		// replays instead of emitting a second checkout
		s.logger.Error("failed to clear cart after checkout",
			zap.String("user_id", ownerID),
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, errors.Join(ErrCheckoutIncomplete, err)
	}

	s.recordCount(ctx, awspkg.MetricCartCheckouts, map[string]string{"Service": "cart-service"})
	s.logger.Info("checkout requested",
		zap.String("user_id", ownerID),
		zap.String("event_id", eventID),
		zap.Int("items", len(evt.Items)))

	return &CheckoutResult{
		EventID:       eventID,
		ItemCount:     len(evt.Items),
		TotalQuantity: cart.TotalQuantity(),
	}, nil
}

// detach keeps the request values (request id) but drops the caller's
// cancellation: a client that disconnects must not roll back a write or
// suppress the notification of one that already committed.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), MutationTimeout)
}

func (s *cartServiceImpl) releaseIdem(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Release(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// load returns the stored cart, or an unsaved empty cart when none exists.
func (s *cartServiceImpl) load(ctx context.Context, ownerID string) (*models.Cart, error) {
	start := time.Now()
	cart, err := s.store.ReadCart(ctx, ownerID)
	s.observeStore(ctx, "read", start)
	if errors.Is(err, repository.ErrCartNotFound) {
		return models.NewEmptyCart(ownerID), nil
	}
	if err != nil {
		return nil, s.storeError("read", "read", err)
	}
	return cart, nil
}

func (s *cartServiceImpl) write(ctx context.Context, op, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	start := time.Now()
	saved, err := s.store.WriteCart(ctx, ownerID, items)
	s.observeStore(ctx, "write", start)
	if err != nil {
		return nil, s.storeError(op, "write", err)
	}
	return saved, nil
}

func (s *cartServiceImpl) deleteLineItem(ctx context.Context, op, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	start := time.Now()
	saved, err := s.store.DeleteLineItem(ctx, ownerID, key)
	s.observeStore(ctx, "delete_line_item", start)
	if errors.Is(err, repository.ErrCartNotFound) {
		return models.NewEmptyCart(ownerID), nil
	}
	if err != nil {
		return nil, s.storeError(op, "delete_line_item", err)
	}
	return saved, nil
}

func (s *cartServiceImpl) storeError(op, call string, err error) error {
	if errors.Is(err, repository.ErrInvalidIdentifier) {
		return &ValidationError{Field: "identifier", Reason: "must not be empty", Err: err}
	}
	s.logger.Error("cart store call failed", zap.String("operation", op), zap.String("call", call), zap.Error(err))
	s.recordCount(context.Background(), awspkg.MetricCartMutationErrors, map[string]string{"Operation": op})
	return &StoreError{Op: call, Err: err}
}

// afterMutation fans the new state out. Failures here never fail the
// mutation, which is already persisted.
func (s *cartServiceImpl) afterMutation(ctx context.Context, op string, cart *models.Cart) {
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, cart); err != nil {
			s.logger.Warn("failed to notify cart subscribers", zap.String("user_id", cart.OwnerID), zap.Error(err))
		}
	}

	evt := models.CartUpdatedEvent{
		EventID:       uuid.NewString(),
		Event:         models.EventCartUpdated,
		UserID:        cart.OwnerID,
		Operation:     op,
		ItemCount:     len(cart.Items),
		TotalQuantity: cart.TotalQuantity(),
		Timestamp:     cart.UpdatedAt,
	}
	if err := s.publisher.PublishCartUpdated(ctx, evt); err != nil {
		s.logger.Warn("failed to publish cart.updated", zap.String("user_id", cart.OwnerID), zap.Error(err))
	}

	dims := map[string]string{"Operation": op}
	s.recordCount(ctx, awspkg.MetricCartMutations, dims)
	if s.metrics != nil && s.metrics.IsEnabled() {
		_ = s.metrics.RecordValue(ctx, awspkg.MetricCartItems, float64(len(cart.Items)), dims)
	}

	s.logger.Debug("cart mutated",
		zap.String("user_id", cart.OwnerID),
		zap.String("operation", op),
		zap.Int("items", len(cart.Items)))
}

func (s *cartServiceImpl) observeStore(ctx context.Context, call string, start time.Time) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	_ = s.metrics.RecordLatency(ctx, awspkg.MetricCartStoreLatency, time.Since(start), map[string]string{"Call": call})
}

func (s *cartServiceImpl) recordCount(ctx context.Context, metric string, dims map[string]string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	_ = s.metrics.RecordCount(ctx, metric, dims)
}

func validateOwner(ownerID string) error {
	if err := repository.ValidateOwnerID(ownerID); err != nil {
		return &ValidationError{Field: "owner_id", Reason: "must not be empty", Err: err}
	}
	return nil
}

func validateProduct(productID string) error {
	if strings.TrimSpace(productID) == "" {
		return &ValidationError{Field: "product_id", Reason: "must not be empty", Err: repository.ErrInvalidIdentifier}
	}
	return nil
}
