package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"chowspace/pkg/cart"
)

// ErrNotFound is returned when a product is missing so HTTP handlers can respond with 404.
var ErrNotFound = errors.New("product not found")

// Product is a dish or drink the vendor offers.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	// Extra keeps vendor-specific attributes such as spice level or portion size.
	Extra map[string]any `json:"extra,omitempty"`
}

// MarshalJSON writes the price as a JSON number so menu and cart prices look alike.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price json.RawMessage `json:"price"`
	}{plain(p), json.RawMessage(p.Price.String())})
}

// Validate applies the catalogue rules before a product is stored.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product %s: name is required", p.ID)
	}
	if err := cart.CheckPrice(p.Price); err != nil {
		return fmt.Errorf("product %s: %w", p.ID, err)
	}
	return nil
}

// LineItem converts the product into something the cart can hold; presentation fields ride along opaquely.
func (p Product) LineItem() cart.LineItem {
	fields := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		fields[k] = v
	}
	if p.Category != "" {
		fields["category"] = p.Category
	}
	if p.Image != "" {
		fields["image"] = p.Image
	}
	if p.Description != "" {
		fields["description"] = p.Description
	}
	if len(fields) == 0 {
		fields = nil
	}
	return cart.LineItem{ID: p.ID, Name: p.Name, Price: p.Price, Fields: fields}
}

// defaultMenu showcases signature dishes when no menu file is configured.
func defaultMenu() []Product {
	return []Product{
		{ID: "jollof-rice", Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Category: "rice", Image: "/img/jollof.jpg", Description: "Party-style smoky jollof"},
		{ID: "fried-plantain", Name: "Fried Plantain", Price: decimal.NewFromInt(500), Category: "sides", Image: "/img/dodo.jpg", Description: "Ripe dodo, fried golden"},
		{ID: "peppered-chicken", Name: "Peppered Chicken", Price: decimal.NewFromInt(2200), Category: "protein", Image: "/img/chicken.jpg", Description: "Quarter chicken in pepper sauce"},
		{ID: "chapman", Name: "Chapman", Price: decimal.NewFromInt(800), Category: "drinks", Image: "/img/chapman.jpg"},
	}
}
