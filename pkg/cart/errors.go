package cart

import "errors"

var (
	// ErrInvalidIndex is returned when a pack index falls outside the cart.
	ErrInvalidIndex = errors.New("pack index out of range")
	// ErrInvalidItem is returned for items without an identity or with a price outside CheckPrice's bounds.
	ErrInvalidItem = errors.New("invalid line item")
)
