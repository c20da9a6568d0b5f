package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chowspace/pkg/backend"
	"chowspace/pkg/order"
)

// ErrInvalidFilter is returned for a malformed date or an unknown status filter.
var ErrInvalidFilter = errors.New("invalid order filter")

// StatusAll disables status filtering.
const StatusAll = "all"

// Filter narrows the manager's order list to one calendar day and optionally one status.
type Filter struct {
	// Date is a UTC calendar day, YYYY-MM-DD. Empty means today.
	Date string
	// Status is all, pending or completed. Empty means all.
	Status string
}

func (f Filter) normalize(now time.Time) (Filter, error) {
	if f.Date == "" {
		f.Date = now.UTC().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, f.Date); err != nil {
		return Filter{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidFilter, f.Date)
	}
	switch f.Status {
	case "":
		f.Status = StatusAll
	case StatusAll, string(order.StatusPending), string(order.StatusCompleted):
	default:
		return Filter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	return f, nil
}

// OrderAPI is the part of the backend the dashboard drives.
type OrderAPI interface {
	ManagerOrders(ctx context.Context, token string) ([]order.Order, error)
	UpdateOrderStatus(ctx context.Context, token, id string, status order.Status) error
	CleanupPendingOrders(ctx context.Context, token string) error
}

// Dashboard is the manager's view over the day's orders.
type Dashboard struct {
	api    OrderAPI
	logger *zap.Logger
	now    func() time.Time
}

// New builds a dashboard on top of the order API.
func New(api OrderAPI, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{api: api, logger: logger, now: time.Now}
}

// Orders fetches the manager's orders placed on the filter date, then applies the status filter.
func (d *Dashboard) Orders(ctx context.Context, token string, filter Filter) ([]order.Order, error) {
	if token == "" {
		return nil, backend.ErrUnauthorized
	}
	filter, err := filter.normalize(d.now())
	if err != nil {
		return nil, err
	}

	all, err := d.api.ManagerOrders(ctx, token)
	if err != nil {
		d.logger.Error("failed to load orders", zap.Error(err))
		return nil, err
	}

	filtered := make([]order.Order, 0, len(all))
	for _, ord := range all {
		if ord.CreatedOn() != filter.Date {
			continue
		}
		if filter.Status != StatusAll && string(ord.Status) != filter.Status {
			continue
		}
		filtered = append(filtered, ord)
	}
	return filtered, nil
}

// Toggle flips an order between pending and completed and returns the status it now has.
func (d *Dashboard) Toggle(ctx context.Context, token, id string, current order.Status) (order.Status, error) {
	if token == "" {
		return current, backend.ErrUnauthorized
	}
	next := current.Toggle()
	if err := d.api.UpdateOrderStatus(ctx, token, id, next); err != nil {
		d.logger.Error("status update failed", zap.String("order", id), zap.Error(err))
		return current, err
	}
	d.logger.Info("order status changed", zap.String("order", id), zap.String("status", string(next)))
	return next, nil
}

// Cleanup asks the backend to drop pending orders that were never paid.
func (d *Dashboard) Cleanup(ctx context.Context, token string) error {
	if token == "" {
		return backend.ErrUnauthorized
	}
	if err := d.api.CleanupPendingOrders(ctx, token); err != nil {
		d.logger.Error("cleanup failed", zap.Error(err))
		return err
	}
	d.logger.Info("pending unpaid orders cleaned up")
	return nil
}

// Summary totals a list of orders.
type Summary struct {
	Orders    int             `json:"orders"`
	Pending   int             `json:"pending"`
	Completed int             `json:"completed"`
	Paid      int             `json:"paid"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Revenue json.RawMessage `json:"revenue"`
	}{plain(s), json.RawMessage(s.Revenue.String())})
}

// Summarize counts orders per status; revenue only includes paid orders.
func Summarize(orders []order.Order) Summary {
	s := Summary{Orders: len(orders), Revenue: decimal.Zero}
	for _, ord := range orders {
		switch ord.Status {
		case order.StatusCompleted:
			s.Completed++
		default:
			s.Pending++
		}
		if ord.PaymentStatus.Tone() == order.ToneSettled {
			s.Paid++
			s.Revenue = s.Revenue.Add(ord.TotalAmount)
		}
	}
	return s
}
