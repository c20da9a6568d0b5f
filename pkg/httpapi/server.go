package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chowspace/pkg/backend"
	"chowspace/pkg/cart"
	"chowspace/pkg/checkout"
	"chowspace/pkg/dashboard"
	"chowspace/pkg/menu"
	"chowspace/pkg/order"
	"chowspace/pkg/session"
)

const (
	// serviceTimeout bounds calls into the in-process services.
	serviceTimeout = 3 * time.Second
	// maxBodyBytes caps request bodies; the largest legitimate payload is a checkout form.
	maxBodyBytes = 64 << 10
)

// Server wires HTTP endpoints to the storefront and manager services.
type Server struct {
	sessions  *session.Manager
	menu      *menu.Service
	checkout  *checkout.Service
	dashboard *dashboard.Dashboard
	logger    *zap.Logger
}

// New assembles the API; every dependency is required except the logger.
func New(sessions *session.Manager, menuService *menu.Service, checkoutService *checkout.Service, dash *dashboard.Dashboard, logger *zap.Logger) (*Server, error) {
	if sessions == nil || menuService == nil || checkoutService == nil || dash == nil {
		return nil, errors.New("httpapi: missing service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions:  sessions,
		menu:      menuService,
		checkout:  checkoutService,
		dashboard: dash,
		logger:    logger,
	}, nil
}

// Handler exposes the router with storefront, checkout and manager routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", s.listMenu)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Delete("/", s.emptyCart)
				r.Post("/items", s.addItem)
				r.Delete("/items/{itemID}", s.removeItem)
				r.Post("/items/{itemID}/increment", s.incrementItem)
				r.Post("/packs", s.createPack)
				r.Post("/packs/{index}/duplicate", s.duplicatePack)
				r.Put("/packs/active", s.switchPack)
			})

			r.Post("/checkout", s.placeOrder)
			r.Post("/checkout/verify", s.verifyPayment)
		})

		r.Route("/manager/orders", func(r chi.Router) {
			r.Get("/", s.managerOrders)
			r.Put("/{orderID}/toggle", s.toggleOrder)
			r.Delete("/pending", s.cleanupOrders)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listMenu serves the vendor catalogue the storefront renders.
func (s *Server) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	products, err := s.menu.List(ctx)
	if err != nil {
		s.fail(w, r, "menu listing failed", err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// logRequests records one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case order.IsValidation(err),
		errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidIndex),
		errors.Is(err, dashboard.ErrInvalidFilter),
		errors.Is(err, checkout.ErrMissingReference),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, checkout.ErrNoPendingOrder):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrPaymentNotConfirmed):
		return http.StatusPaymentRequired
	case errors.Is(err, menu.ErrNotFound), errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrUnavailable), errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marks malformed requests such as invalid JSON or a non-numeric pack index.
var errBadRequest = errors.New("bad request")

var errBodyTooLarge = errors.New("request body too large")

// fail logs the rejection with context and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	respondError(w, err.Error(), s.logFailure(r, msg, err))
}

// logFailure logs err at a level matching its mapped status and returns that status.
func (s *Server) logFailure(r *http.Request, msg string, err error) int {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if sess, ok := sessionFrom(r.Context()); ok {
		fields = append(fields, zap.String("session", sess.ID))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, fields...)
	} else {
		s.logger.Info(msg, fields...)
	}
	return status
}

// decodeJSON reads a request body into v, reporting malformed payloads as bad requests.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError keeps JSON formatting consistent across endpoints.
func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}
