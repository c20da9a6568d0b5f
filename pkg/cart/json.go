package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// reservedKeys are decoded into LineItem fields; everything else lands in Fields.
var reservedKeys = []string{"id", "_id", "name", "price", "quantity"}

// MarshalJSON flattens the opaque product fields next to the known ones so products round-trip unchanged.
func (i LineItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Fields)+4)
	for k, v := range i.Fields {
		out[k] = v
	}
	out["id"] = i.ID
	out["name"] = i.Name
	out["price"] = json.RawMessage(i.Price.String())
	out["quantity"] = i.Quantity
	return json.Marshal(out)
}

// UnmarshalJSON accepts both "id" and the backend's "_id" as identity and prices as numbers or strings.
func (i *LineItem) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	idValue, ok := raw["id"]
	if !ok {
		idValue = raw["_id"]
	}
	id, err := stringValue(idValue)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	name, err := stringValue(raw["name"])
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	price, err := decimalValue(raw["price"])
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	quantity, err := intValue(raw["quantity"])
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}

	for _, key := range reservedKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*i = LineItem{ID: id, Name: name, Price: price, Quantity: quantity, Fields: raw}
	return nil
}

func stringValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func decimalValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(val)
	default:
		return decimal.Zero, fmt.Errorf("unexpected type %T", v)
	}
}

func intValue(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
