package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chowspace/pkg/cart"
	"chowspace/pkg/session"
)

// SessionCookie carries the shopper's session id.
const SessionCookie = "chowspace_session"

type sessionKey struct{}

// withSession resolves the shopper's session from the cookie, starting a new one when it is missing or expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		var sess *session.Session
		if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
			sess, err = s.sessions.Get(ctx, cookie.Value)
			if err != nil && !errors.Is(err, session.ErrNotFound) {
				s.fail(w, r, "session lookup failed", err)
				return
			}
		}
		if sess == nil {
			created, err := s.sessions.Create(ctx)
			if err != nil {
				s.fail(w, r, "session start failed", err)
				return
			}
			sess = created
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*session.Session)
	return sess, ok
}

func mustSession(r *http.Request) *session.Session {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		panic("httpapi: cart route mounted without session middleware")
	}
	return sess
}

// cartResponse is the snapshot plus the totals the storefront shows in its header.
type cartResponse struct {
	cart.Snapshot
	Total     json.RawMessage `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	return cartResponse{Snapshot: snap, Total: json.RawMessage(snap.Total().String()), ItemCount: snap.ItemCount()}
}

func (s *Server) respondCart(w http.ResponseWriter, r *http.Request, snap cart.Snapshot, err error, msg string) {
	if err != nil {
		s.fail(w, r, msg, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(snap))
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(mustSession(r).Cart.Snapshot()))
}

func (s *Server) emptyCart(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	snap := sess.Cart.EmptyCart()
	s.logger.Info("cart emptied", zap.String("session", sess.ID))
	respondJSON(w, http.StatusOK, newCartResponse(snap))
}

// addItem accepts a full line item, or just {"id": ...} which is filled in from the menu.
func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	var item cart.LineItem
	if err := decodeJSON(r, &item); err != nil {
		s.fail(w, r, "add to cart rejected", err)
		return
	}
	if item.ID != "" && item.Name == "" && item.Price.IsZero() && len(item.Fields) == 0 {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()
		product, err := s.menu.Get(ctx, item.ID)
		if err != nil {
			s.fail(w, r, "add to cart rejected", fmt.Errorf("%w: %s", err, item.ID))
			return
		}
		item = product.LineItem()
	}

	pack, explicit, err := packParam(r)
	if err != nil {
		s.fail(w, r, "add to cart rejected", err)
		return
	}
	var snap cart.Snapshot
	if explicit {
		snap, err = sess.Cart.AddToPack(pack, item)
	} else {
		snap, err = sess.Cart.Add(item)
	}
	s.respondCart(w, r, snap, err, "add to cart rejected")
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id := chi.URLParam(r, "itemID")

	pack, explicit, err := packParam(r)
	if err != nil {
		s.fail(w, r, "remove from cart rejected", err)
		return
	}
	var snap cart.Snapshot
	if explicit {
		snap, err = sess.Cart.RemoveFromPack(pack, id)
	} else {
		snap, err = sess.Cart.Remove(id)
	}
	s.respondCart(w, r, snap, err, "remove from cart rejected")
}

func (s *Server) incrementItem(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	id := chi.URLParam(r, "itemID")

	pack, explicit, err := packParam(r)
	if err != nil {
		s.fail(w, r, "increment rejected", err)
		return
	}
	var snap cart.Snapshot
	if explicit {
		snap, err = sess.Cart.IncrementInPack(pack, id)
	} else {
		snap, err = sess.Cart.Increment(id)
	}
	s.respondCart(w, r, snap, err, "increment rejected")
}

func (s *Server) createPack(w http.ResponseWriter, r *http.Request) {
	snap, err := mustSession(r).Cart.CreatePack()
	s.respondCart(w, r, snap, err, "create pack failed")
}

func (s *Server) duplicatePack(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		s.fail(w, r, "duplicate pack rejected", err)
		return
	}
	snap, err := mustSession(r).Cart.DuplicatePack(index)
	s.respondCart(w, r, snap, err, "duplicate pack rejected")
}

func (s *Server) switchPack(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Index *int `json:"index"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, r, "switch pack rejected", err)
		return
	}
	if payload.Index == nil {
		s.fail(w, r, "switch pack rejected", fmt.Errorf("%w: index is required", errBadRequest))
		return
	}
	snap, err := mustSession(r).Cart.SwitchPack(*payload.Index)
	s.respondCart(w, r, snap, err, "switch pack rejected")
}

// packParam reads the optional ?pack= target; without it operations use the active pack.
func packParam(r *http.Request) (int, bool, error) {
	raw := r.URL.Query().Get("pack")
	if raw == "" {
		return 0, false, nil
	}
	index, err := parseIndex(raw)
	return index, true, err
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a pack index", cart.ErrInvalidIndex, raw)
	}
	return index, nil
}
