package session

import (
	"sync"

	"go.uber.org/zap"

	"chowspace/pkg/cart"
	"chowspace/pkg/order"
)

// Session is one shopper's visit: a cart store plus the order waiting for payment confirmation.
type Session struct {
	ID   string
	Cart *cart.Store

	mu      sync.Mutex
	pending *order.Order
}

func newSession(id string, logger *zap.Logger) *Session {
	return &Session{
		ID:   id,
		Cart: cart.NewStore(logger.With(zap.String("session", id))),
	}
}

// SetPending remembers the order submitted at checkout until its payment is verified.
func (s *Session) SetPending(ord order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &ord
}

// Pending returns the order awaiting verification, if any.
func (s *Session) Pending() (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return order.Order{}, false
	}
	return *s.pending, true
}

// ClearPending forgets the pending order once it is confirmed.
func (s *Session) ClearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// destroy drops everything the session holds when it ends.
func (s *Session) destroy() {
	s.Cart.EmptyCart()
	s.ClearPending()
}
