package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chowspace/pkg/backend"
	"chowspace/pkg/order"
	"chowspace/pkg/session"
)

var (
	// ErrMissingReference is returned when the payment redirect carried no reference.
	ErrMissingReference = errors.New("payment reference is required")
	// ErrNoPendingOrder is returned when the session has nothing awaiting payment.
	ErrNoPendingOrder = errors.New("no order is awaiting payment")
	// ErrPaymentNotConfirmed is returned when the provider has not settled the payment yet.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
)

// State is where a confirmation attempt ended up.
type State string

const (
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Confirmation is shown on the page the payment provider redirects back to.
type Confirmation struct {
	State State       `json:"state"`
	Order order.Order `json:"order"`
}

// OrderAPI is the part of the backend checkout needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, ord order.Order) (backend.Placement, error)
	VerifyPayment(ctx context.Context, reference string) (backend.Verification, error)
}

// Service turns carts into orders and confirms their payment.
type Service struct {
	api    OrderAPI
	logger *zap.Logger
}

// NewService wires the checkout flow to the order API.
func NewService(api OrderAPI, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger}
}

// PlaceOrder submits the session's cart and remembers the order until payment is verified.
// The cart itself is left alone so an abandoned payment does not lose it.
func (s *Service) PlaceOrder(ctx context.Context, sess *session.Session, guest order.GuestInfo, method order.DeliveryMethod) (backend.Placement, error) {
	ord, err := order.Build(sess.Cart.Snapshot(), guest, method)
	if err != nil {
		return backend.Placement{}, err
	}

	placement, err := s.api.CreateOrder(ctx, ord)
	if err != nil {
		s.logger.Error("order submission failed", zap.String("session", sess.ID), zap.Error(err))
		return backend.Placement{}, err
	}
	if placement.Order.ID == "" {
		placement.Order = ord
	}
	sess.SetPending(placement.Order)

	s.logger.Info("order placed",
		zap.String("session", sess.ID),
		zap.String("order", placement.Order.ID),
		zap.Int("items", len(ord.Items)),
		zap.String("total", ord.TotalAmount.String()),
	)
	return placement, nil
}

// Confirm verifies the payment behind reference. A successful check empties the cart and
// drops the pending order. Any failure keeps the pending order so Confirm can be retried.
func (s *Service) Confirm(ctx context.Context, sess *session.Session, reference string) (Confirmation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Confirmation{}, ErrMissingReference
	}
	pending, ok := sess.Pending()
	if !ok {
		return Confirmation{}, ErrNoPendingOrder
	}

	v, err := s.api.VerifyPayment(ctx, reference)
	if err != nil {
		s.logger.Warn("payment verification failed",
			zap.String("session", sess.ID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return Confirmation{State: StateFailed, Order: pending}, err
	}
	if !v.Success {
		return Confirmation{State: StateFailed, Order: pending}, fmt.Errorf("%w: reference %s", ErrPaymentNotConfirmed, reference)
	}

	confirmed := v.Order
	if confirmed.ID == "" {
		confirmed = pending
	}
	sess.ClearPending()
	sess.Cart.EmptyCart()

	s.logger.Info("payment confirmed",
		zap.String("session", sess.ID),
		zap.String("order", confirmed.ID),
		zap.String("reference", reference),
	)
	return Confirmation{State: StateConfirmed, Order: confirmed}, nil
}
