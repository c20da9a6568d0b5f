package menu

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// file is the on-disk shape of a vendor menu.
type file struct {
	Vendor   string        `yaml:"vendor"`
	Products []yamlProduct `yaml:"products"`
}

// yamlProduct keeps the price as a raw node so both 1500 and "1500.50" parse exactly.
type yamlProduct struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Price       yaml.Node      `yaml:"price"`
	Category    string         `yaml:"category"`
	Image       string         `yaml:"image"`
	Description string         `yaml:"description"`
	Extra       map[string]any `yaml:",inline"`
}

// Load reads a menu file. An empty path yields the built-in menu.
func Load(path string) ([]Product, error) {
	if path == "" {
		return defaultMenu(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	return Parse(data)
}

// Parse decodes menu YAML and validates every product; duplicate ids are rejected.
func Parse(data []byte) ([]Product, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}

	products := make([]Product, 0, len(f.Products))
	seen := make(map[string]bool, len(f.Products))
	for i, raw := range f.Products {
		price := decimal.Zero
		if raw.Price.Kind != 0 {
			parsed, err := decimal.NewFromString(raw.Price.Value)
			if err != nil {
				return nil, fmt.Errorf("menu product %d: invalid price %q: %w", i, raw.Price.Value, err)
			}
			price = parsed
		}
		p := Product{
			ID:          raw.ID,
			Name:        raw.Name,
			Price:       price,
			Category:    raw.Category,
			Image:       raw.Image,
			Description: raw.Description,
			Extra:       raw.Extra,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("menu product %d: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("menu product %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = true
		products = append(products, p)
	}
	return products, nil
}
