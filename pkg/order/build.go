package order

import (
	"errors"
	"strings"

	"chowspace/pkg/cart"
)

// validationError communicates rule violations back to HTTP handlers.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

// newValidationError keeps the constructor private to the package.
func newValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation helps callers distinguish between business and infrastructure failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// Build freezes a cart snapshot into an order. Every non-empty pack contributes its items,
// numbered from 1 in the order packs were created.
func Build(snap cart.Snapshot, guest GuestInfo, method DeliveryMethod) (Order, error) {
	if method == "" {
		method = DeliveryDoorstep
	}
	guest = GuestInfo{
		Name:    strings.TrimSpace(guest.Name),
		Email:   strings.TrimSpace(guest.Email),
		Phone:   strings.TrimSpace(guest.Phone),
		Address: strings.TrimSpace(guest.Address),
	}

	ord := Order{
		Items:          make([]Item, 0, snap.ItemCount()),
		TotalAmount:    snap.Total(),
		GuestInfo:      guest,
		DeliveryMethod: method,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
	}
	for idx, pack := range snap.Packs {
		for _, line := range pack {
			ord.Items = append(ord.Items, Item{
				ProductID: line.ID,
				Name:      line.Name,
				Price:     line.Price,
				Quantity:  line.Quantity,
				Image:     imageOf(line),
				Pack:      idx + 1,
			})
		}
	}

	if err := validateOrder(ord); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// imageOf pulls the product picture out of the opaque fields for the confirmation summary.
func imageOf(line cart.LineItem) string {
	if image, ok := line.Fields["image"].(string); ok {
		return image
	}
	return ""
}

// validateOrder keeps the business rules near the builder so HTTP and CLI callers share them.
func validateOrder(ord Order) error {
	if len(ord.Items) == 0 {
		return newValidationError("cart is empty")
	}
	if ord.GuestInfo.Name == "" {
		return newValidationError("name is required")
	}
	if ord.GuestInfo.Phone == "" {
		return newValidationError("phone is required")
	}
	switch ord.DeliveryMethod {
	case DeliveryDoorstep:
		if ord.GuestInfo.Address == "" {
			return newValidationError("address is required for delivery")
		}
	case DeliveryPickup:
	default:
		return newValidationError("unknown delivery method " + string(ord.DeliveryMethod))
	}
	return nil
}
