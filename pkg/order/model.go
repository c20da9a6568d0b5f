package order

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state a manager moves an order through.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Toggle flips pending and completed; anything else goes back to pending.
func (s Status) Toggle() Status {
	if s == StatusPending {
		return StatusCompleted
	}
	return StatusPending
}

// PaymentStatus is reported by the payment provider through the backend.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentFailed  PaymentStatus = "failed"
)

// Tone groups payment statuses the way the dashboard colours them.
type Tone int

const (
	ToneSettled Tone = iota
	ToneWaiting
	ToneFailed
)

func (t Tone) String() string {
	switch t {
	case ToneSettled:
		return "settled"
	case ToneWaiting:
		return "waiting"
	default:
		return "failed"
	}
}

// Tone classifies the status case-insensitively; an empty status still waits for the provider.
func (p PaymentStatus) Tone() Tone {
	switch PaymentStatus(strings.ToLower(string(p))) {
	case PaymentPaid:
		return ToneSettled
	case PaymentPending, PaymentUnpaid, "":
		return ToneWaiting
	default:
		return ToneFailed
	}
}

// Label falls back to pending when the backend has not set a payment status yet.
func (p PaymentStatus) Label() string {
	if p == "" {
		return string(PaymentPending)
	}
	return string(p)
}

// DeliveryMethod tells the vendor whether to dispatch a rider.
type DeliveryMethod string

const (
	DeliveryDoorstep DeliveryMethod = "delivery"
	DeliveryPickup   DeliveryMethod = "pickup"
)

// GuestInfo is what a customer types at checkout; no account is required.
type GuestInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

// Item is a cart line item frozen into an order, tagged with the pack it came from.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
	Pack      int             `json:"pack"`
}

// MarshalJSON writes the price as a JSON number, the form the order API stores.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Price json.RawMessage `json:"price"`
	}{plain(i), json.RawMessage(i.Price.String())})
}

// Order mirrors the document the backend persists.
type Order struct {
	ID             string          `json:"_id,omitempty"`
	Items          []Item          `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	GuestInfo      GuestInfo       `json:"guestInfo"`
	DeliveryMethod DeliveryMethod  `json:"deliveryMethod,omitempty"`
	Status         Status          `json:"status,omitempty"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	CreatedAt      time.Time       `json:"createdAt,omitzero"`
}

// MarshalJSON writes the total as a JSON number.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		TotalAmount json.RawMessage `json:"totalAmount"`
	}{plain(o), json.RawMessage(o.TotalAmount.String())})
}

// ShortID is the ticket number shown to staff: the last six characters of the id, upper-cased.
func (o Order) ShortID() string {
	id := o.ID
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return "#" + strings.ToUpper(id)
}

// ItemsSummary renders "name xN" for every item.
func (o Order) ItemsSummary() string {
	parts := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		parts = append(parts, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	return strings.Join(parts, ", ")
}

// CreatedOn returns the UTC calendar day the order was placed, formatted YYYY-MM-DD.
func (o Order) CreatedOn() string {
	return o.CreatedAt.UTC().Format(time.DateOnly)
}
