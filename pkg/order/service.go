package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Catalog is the read side of the menu used at checkout.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.MenuItem, error)
}

// Ledger persists orders. Transition must only apply when the stored order
// still has the given status and payment status, and report
// repository.ErrConflict otherwise.
type Ledger interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	Transition(ctx context.Context, order *models.Order, from models.OrderStatus, fromPayment models.PaymentStatus) error
	ListByUser(ctx context.Context, userID string) ([]*models.Order, error)
	List(ctx context.Context) ([]*models.Order, error)
}

type Cache interface {
	CacheOrder(ctx context.Context, order *models.Order) error
	GetOrderCache(ctx context.Context, orderID string) (*models.Order, error)
	InvalidateOrder(ctx context.Context, orderID string) error
}

type Auditor interface {
	Record(action, entityID string, data map[string]interface{})
}

type LineRequest struct {
	ItemID   string
	Quantity int
}

type PlaceOrderInput struct {
	UserID        string
	UserName      string
	Lines         []LineRequest
	PaymentMethod models.PaymentMethod
}

// PlaceOrderResult carries the persisted order and, for online payment,
// the gateway intent the client needs to complete checkout.
type PlaceOrderResult struct {
	Order  *models.Order
	Intent *payment.Intent
}

// Requester identifies the caller of an operation on an existing order.
type Requester struct {
	UserID  string
	IsAdmin bool
}

const maxTransitionAttempts = 3

var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:   {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing: {models.StatusDelivered},
}

func canTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParsePaymentMethod maps the wire value to a payment method. "razorpay" is
// accepted as an alias of online.
func ParsePaymentMethod(s string) (models.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(models.PaymentCOD):
		return models.PaymentCOD, nil
	case string(models.PaymentOnline), "razorpay":
		return models.PaymentOnline, nil
	}
	return "", &InvalidInputError{Field: "paymentMethod", Message: "payment method must be cod or online"}
}

type Service struct {
	catalog  Catalog
	ledger   Ledger
	gateway  payment.Gateway
	signer   *payment.Signer
	cache    Cache
	audit    Auditor
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// NewService builds the order service. gateway and signer may be nil when
// online payment is not configured.
func NewService(catalog Catalog, ledger Ledger, gateway payment.Gateway, signer *payment.Signer, currency string, logger *zap.Logger) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		catalog:  catalog,
		ledger:   ledger,
		gateway:  gateway,
		signer:   signer,
		cache:    nopCache{},
		audit:    nopAuditor{},
		currency: currency,
		logger:   logger.Named("order"),
		now:      time.Now,
	}
}

func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithAuditor(a Auditor) *Service {
	s.audit = a
	return s
}

// PlaceOrder validates the requested lines against the catalog, snapshots
// prices and persists exactly one order. Nothing is written when any check
// fails.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if in.UserID == "" {
		return nil, &InvalidInputError{Field: "user", Message: "user is required"}
	}
	if len(in.Lines) == 0 {
		return nil, &InvalidInputError{Field: "items", Message: "no order items"}
	}
	for i, l := range in.Lines {
		if l.Quantity < 1 {
			return nil, &InvalidInputError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "quantity must be a positive integer",
			}
		}
	}
	if in.PaymentMethod != models.PaymentCOD && in.PaymentMethod != models.PaymentOnline {
		return nil, &InvalidInputError{Field: "paymentMethod", Message: "payment method must be cod or online"}
	}

	var invalid []string
	ids := make([]primitive.ObjectID, 0, len(in.Lines))
	seen := make(map[string]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if !models.IsValidID(l.ItemID) {
			invalid = append(invalid, l.ItemID)
			continue
		}
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		oid, _ := primitive.ObjectIDFromHex(l.ItemID)
		seen[l.ItemID] = struct{}{}
		ids = append(ids, oid)
	}
	if len(invalid) > 0 {
		return nil, &InvalidItemReferenceError{IDs: invalid}
	}

	items, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu items: %w", err)
	}

	byID := make(map[primitive.ObjectID]*models.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	if len(items) != len(ids) {
		for _, oid := range ids {
			if _, ok := byID[oid]; !ok {
				return nil, &ItemNotFoundError{ItemID: oid.Hex()}
			}
		}
		return nil, ErrItemNotFound
	}

	lines := make([]models.OrderItem, 0, len(in.Lines))
	total := decimal.Zero
	for _, l := range in.Lines {
		oid, _ := primitive.ObjectIDFromHex(l.ItemID)
		item, ok := byID[oid]
		if !ok {
			return nil, &ItemNotFoundError{ItemID: l.ItemID}
		}
		if !item.Available {
			return nil, &ItemUnavailableError{ID: l.ItemID, Name: item.Name}
		}
		lines = append(lines, models.OrderItem{
			FoodItem: item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: l.Quantity,
		})
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	order := &models.Order{
		UserID:        in.UserID,
		UserName:      in.UserName,
		Items:         lines,
		Total:         total.Round(2).InexactFloat64(),
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: in.PaymentMethod,
	}

	var intent *payment.Intent
	if in.PaymentMethod == models.PaymentOnline {
		if s.gateway == nil {
			return nil, ErrPaymentServiceUnavailable
		}
		intent, err = s.gateway.CreateIntent(ctx, payment.IntentRequest{
			Amount:   payment.ToMinorUnits(total),
			Currency: s.currency,
			Receipt:  payment.Receipt(s.now()),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
		}
		order.PaymentID = intent.ID
	}

	if err := s.ledger.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.remember(ctx, order)
	s.audit.Record("create_order", order.ID.Hex(), map[string]interface{}{
		"user_id":        order.UserID,
		"total":          order.Total,
		"payment_method": string(order.PaymentMethod),
	})
	s.logger.Info("order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", order.UserID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Float64("total", order.Total),
	)

	return &PlaceOrderResult{Order: order, Intent: intent}, nil
}

// VerifyPayment checks a gateway callback for the order holding intentID.
// Only the order's owner or an admin may settle it. A signature mismatch is
// reported through the verified flag, not an error.
func (s *Service) VerifyPayment(ctx context.Context, req Requester, intentID, paymentID, signature string) (*models.Order, bool, error) {
	if intentID == "" {
		return nil, false, &InvalidInputError{Field: "razorpay_order_id", Message: "payment order id is required"}
	}
	if paymentID == "" {
		return nil, false, &InvalidInputError{Field: "razorpay_payment_id", Message: "payment id is required"}
	}
	if s.signer == nil {
		return nil, false, ErrPaymentServiceUnavailable
	}

	order, err := s.ledger.FindByPaymentID(ctx, intentID)
	if err != nil {
		return nil, false, s.lookupError(err)
	}
	if !req.canAccess(order) {
		return nil, false, ErrForbidden
	}
	return s.settle(ctx, order, paymentID, signature)
}

// VerifyOrderPayment is VerifyPayment addressed by order id. The order's
// stored intent id is used to check the signature.
func (s *Service) VerifyOrderPayment(ctx context.Context, req Requester, orderID, paymentID, signature string) (*models.Order, bool, error) {
	if paymentID == "" {
		return nil, false, &InvalidInputError{Field: "razorpay_payment_id", Message: "payment id is required"}
	}
	if s.signer == nil {
		return nil, false, ErrPaymentServiceUnavailable
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !req.canAccess(order) {
		return nil, false, ErrForbidden
	}
	if order.PaymentID == "" {
		return nil, false, &InvalidInputError{Field: "id", Message: "order has no online payment"}
	}
	return s.settle(ctx, order, paymentID, signature)
}

// settle records the outcome of a callback. The write is conditional on the
// state it was computed from; a lost race reloads the order and decides again.
func (s *Service) settle(ctx context.Context, order *models.Order, paymentID, signature string) (*models.Order, bool, error) {
	verified := s.signer.Verify(order.PaymentID, paymentID, signature)

	for attempt := 1; ; attempt++ {
		switch order.PaymentStatus {
		case models.PaymentCompleted:
			return order, verified, nil
		case models.PaymentFailed:
			if verified {
				return order, false, ErrPaymentAlreadyFinalized
			}
			return order, false, nil
		}

		next := *order
		if verified {
			next.PaymentStatus = models.PaymentCompleted
			next.TransactionID = paymentID
			if next.Status == models.StatusPending {
				next.Status = models.StatusPreparing
			}
		} else {
			next.PaymentStatus = models.PaymentFailed
		}
		next.UpdatedAt = s.now()

		err := s.ledger.Transition(ctx, &next, order.Status, order.PaymentStatus)
		if err == nil {
			order = &next
			break
		}
		if order, err = s.reloadAfterConflict(ctx, next.ID, attempt, err); err != nil {
			return nil, false, err
		}
	}

	s.forget(ctx, order.ID.Hex())
	s.audit.Record("verify_payment", order.ID.Hex(), map[string]interface{}{
		"payment_id": paymentID,
		"verified":   verified,
	})
	if verified {
		s.logger.Info("payment verified",
			zap.String("order_id", order.ID.Hex()),
			zap.String("payment_id", paymentID),
		)
	} else {
		s.logger.Warn("payment signature mismatch",
			zap.String("order_id", order.ID.Hex()),
			zap.String("payment_id", paymentID),
		)
	}

	return order, verified, nil
}

// SetStatus moves an order along the fulfillment graph. Setting the current
// status again is a no-op.
func (s *Service) SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, &InvalidInputError{Field: "status", Message: "invalid order status"}
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var from models.OrderStatus
	for attempt := 1; ; attempt++ {
		if order.Status == status {
			return order, nil
		}
		if !canTransition(order.Status, status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, order.Status, status)
		}

		next := *order
		next.Status = status
		next.UpdatedAt = s.now()

		err := s.ledger.Transition(ctx, &next, order.Status, order.PaymentStatus)
		if err == nil {
			from = order.Status
			order = &next
			break
		}
		if order, err = s.reloadAfterConflict(ctx, next.ID, attempt, err); err != nil {
			return nil, err
		}
	}

	s.forget(ctx, orderID)
	s.audit.Record("update_order_status", orderID, map[string]interface{}{
		"from": string(from),
		"to":   string(status),
	})
	s.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	return order, nil
}

// reloadAfterConflict returns the stored order after a failed Transition so
// the caller can decide again. Only conflicts are retried.
func (s *Service) reloadAfterConflict(ctx context.Context, id primitive.ObjectID, attempt int, err error) (*models.Order, error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrOrderNotFound
	case !errors.Is(err, repository.ErrConflict):
		return nil, fmt.Errorf("failed to update order: %w", err)
	case attempt >= maxTransitionAttempts:
		return nil, ErrConcurrentUpdate
	}

	s.logger.Debug("order changed concurrently, reloading",
		zap.String("order_id", id.Hex()),
		zap.Int("attempt", attempt),
	)
	order, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return order, nil
}

// GetOrder returns the order if the requester owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, orderID string, req Requester) (*models.Order, error) {
	order, err := s.cache.GetOrderCache(ctx, orderID)
	if err != nil || order == nil {
		if order, err = s.load(ctx, orderID); err != nil {
			return nil, err
		}
		s.remember(ctx, order)
	}

	if !req.canAccess(order) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (r Requester) canAccess(order *models.Order) bool {
	return r.IsAdmin || order.UserID == r.UserID
}

func (s *Service) ListMyOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	orders, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]*models.Order, error) {
	orders, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.ledger.FindByID(ctx, oid)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return order, nil
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return fmt.Errorf("failed to find order: %w", err)
}

func (s *Service) remember(ctx context.Context, order *models.Order) {
	if err := s.cache.CacheOrder(ctx, order); err != nil {
		s.logger.Warn("failed to cache order", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}
}

func (s *Service) forget(ctx context.Context, orderID string) {
	if err := s.cache.InvalidateOrder(ctx, orderID); err != nil {
		s.logger.Warn("failed to invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}
}

type nopCache struct{}

func (nopCache) CacheOrder(context.Context, *models.Order) error { return nil }
func (nopCache) GetOrderCache(context.Context, string) (*models.Order, error) {
	return nil, repository.ErrCacheMiss
}
func (nopCache) InvalidateOrder(context.Context, string) error { return nil }

type nopAuditor struct{}

func (nopAuditor) Record(string, string, map[string]interface{}) {}
