package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxPrice is the largest unit price a line item may carry.
var MaxPrice = decimal.New(1, 12)

// CheckPrice accepts non-negative prices in whole kobo up to MaxPrice. The exponent is bounded
// before any arithmetic so a value such as 1e50000000 is never expanded.
func CheckPrice(price decimal.Decimal) error {
	if exp := price.Exponent(); exp > 12 || exp < -12 {
		return errors.New("price is out of range")
	}
	switch {
	case price.IsNegative():
		return fmt.Errorf("price %s is negative", price)
	case price.GreaterThan(MaxPrice):
		return fmt.Errorf("price %s exceeds %s", price, MaxPrice)
	case !price.Truncate(2).Equal(price):
		return fmt.Errorf("price %s has more than two decimal places", price)
	}
	return nil
}

// LineItem is a product entry inside a pack together with how many units were requested.
type LineItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
	// Fields holds product attributes the cart does not interpret, such as image or vendor.
	Fields map[string]any
}

// Subtotal multiplies the unit price by the quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// clone copies the opaque product fields so the copy never aliases the original.
func (i LineItem) clone() LineItem {
	i.Fields = cloneFields(i.Fields)
	return i
}

// Pack is an independent sub-cart; insertion order is display order.
type Pack []LineItem

// Find returns the entry with the given identity.
func (p Pack) Find(id string) (LineItem, bool) {
	if idx := p.index(id); idx >= 0 {
		return p[idx], true
	}
	return LineItem{}, false
}

// Quantity sums the units of every entry in the pack.
func (p Pack) Quantity() int {
	total := 0
	for _, item := range p {
		total += item.Quantity
	}
	return total
}

// Subtotal sums the line subtotals of the pack.
func (p Pack) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (p Pack) index(id string) int {
	for i, item := range p {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// clone always returns a non-nil pack so empty packs encode as [] rather than null.
func (p Pack) clone() Pack {
	out := make(Pack, len(p))
	for i, item := range p {
		out[i] = item.clone()
	}
	return out
}

// Snapshot is a committed view of the cart: the packs and which one is active.
type Snapshot struct {
	Packs  []Pack `json:"packs"`
	Active int    `json:"active"`
}

// initialSnapshot is the state of a fresh session: one empty pack, the first one active.
func initialSnapshot() Snapshot {
	return Snapshot{Packs: []Pack{{}}, Active: 0}
}

// ActivePack returns the pack operations default to.
func (s Snapshot) ActivePack() Pack {
	if s.Active < 0 || s.Active >= len(s.Packs) {
		return nil
	}
	return s.Packs[s.Active]
}

// Total sums every pack subtotal.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, pack := range s.Packs {
		total = total.Add(pack.Subtotal())
	}
	return total
}

// ItemCount sums the units across all packs.
func (s Snapshot) ItemCount() int {
	count := 0
	for _, pack := range s.Packs {
		count += pack.Quantity()
	}
	return count
}

// IsEmpty reports whether no pack holds any item.
func (s Snapshot) IsEmpty() bool {
	return s.ItemCount() == 0
}

func (s Snapshot) clone() Snapshot {
	packs := make([]Pack, len(s.Packs))
	for i, pack := range s.Packs {
		packs[i] = pack.clone()
	}
	return Snapshot{Packs: packs, Active: s.Active}
}

// cloneFields deep-copies JSON-shaped values; scalars are immutable and shared as is.
func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	default:
		return val
	}
}
