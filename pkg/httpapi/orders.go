package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"chowspace/pkg/checkout"
	"chowspace/pkg/dashboard"
	"chowspace/pkg/order"
)

// placeOrder submits the session's cart; the response carries the payment link when there is one.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GuestInfo      order.GuestInfo      `json:"guestInfo"`
		DeliveryMethod order.DeliveryMethod `json:"deliveryMethod"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, r, "checkout rejected", err)
		return
	}

	placement, err := s.checkout.PlaceOrder(r.Context(), mustSession(r), payload.GuestInfo, payload.DeliveryMethod)
	if err != nil {
		s.fail(w, r, "checkout rejected", err)
		return
	}
	respondJSON(w, http.StatusCreated, placement)
}

// verifyPayment is hit after the payment provider redirects the shopper back with a reference.
func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	conf, err := s.checkout.Confirm(r.Context(), mustSession(r), r.URL.Query().Get("reference"))
	if err != nil && conf.State == checkout.StateFailed {
		// The retry page still shows what was ordered.
		status := s.logFailure(r, "payment verification failed", err)
		respondJSON(w, status, failedConfirmation{Confirmation: conf, Error: err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, "payment verification rejected", err)
		return
	}
	respondJSON(w, http.StatusOK, conf)
}

type failedConfirmation struct {
	checkout.Confirmation
	Error string `json:"error"`
}

// bearerToken extracts the manager's access token; the backend decides whether it is valid.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type ordersResponse struct {
	Date    string            `json:"date"`
	Status  string            `json:"status"`
	Orders  []order.Order     `json:"orders"`
	Summary dashboard.Summary `json:"summary"`
}

func (s *Server) managerOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := dashboard.Filter{Date: query.Get("date"), Status: query.Get("status")}

	orders, err := s.dashboard.Orders(r.Context(), bearerToken(r), filter)
	if err != nil {
		s.fail(w, r, "manager order listing failed", err)
		return
	}
	respondJSON(w, http.StatusOK, ordersResponse{
		Date:    filter.Date,
		Status:  filter.Status,
		Orders:  orders,
		Summary: dashboard.Summarize(orders),
	})
}

func (s *Server) toggleOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	var payload struct {
		Status order.Status `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, r, "order toggle rejected", err)
		return
	}
	if payload.Status == "" {
		s.fail(w, r, "order toggle rejected", fmt.Errorf("%w: current status is required", errBadRequest))
		return
	}

	next, err := s.dashboard.Toggle(r.Context(), bearerToken(r), id, payload.Status)
	if err != nil {
		s.fail(w, r, "order toggle failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(next)})
}

func (s *Server) cleanupOrders(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Cleanup(r.Context(), bearerToken(r)); err != nil {
		s.fail(w, r, "order cleanup failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
