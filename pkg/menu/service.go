package menu

import (
	"context"
	"errors"
	"time"
)

// command defines a catalogue mutation so the goroutine can serialize writes through a channel.
type command struct {
	action  string
	product Product
	id      string
	reply   chan commandResult
}

// commandResult forwards either a product, the product list, or an error back to the caller.
type commandResult struct {
	product  Product
	products []Product
	err      error
}

// Service owns the catalogue in a goroutine to uphold Go's "share memory by communicating" approach.
type Service struct {
	commands chan command
	quit     chan struct{}
}

// NewService seeds the catalogue and starts the background goroutine.
func NewService(products []Product) (*Service, error) {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	svc := &Service{
		commands: make(chan command),
		quit:     make(chan struct{}),
	}
	go svc.loop(products)
	return svc, nil
}

// loop processes commands sequentially so no mutexes are needed; order is menu order.
func (s *Service) loop(seed []Product) {
	var (
		order    []string
		products = make(map[string]Product, len(seed))
	)
	for _, p := range seed {
		if _, dup := products[p.ID]; !dup {
			order = append(order, p.ID)
		}
		products[p.ID] = p
	}

	for {
		select {
		case cmd := <-s.commands:
			switch cmd.action {
			case "list":
				list := make([]Product, 0, len(order))
				for _, id := range order {
					list = append(list, products[id])
				}
				cmd.reply <- commandResult{products: list}
			case "get":
				p, ok := products[cmd.id]
				if !ok {
					cmd.reply <- commandResult{err: ErrNotFound}
					continue
				}
				cmd.reply <- commandResult{product: p}
			case "put":
				if _, exists := products[cmd.product.ID]; !exists {
					order = append(order, cmd.product.ID)
				}
				products[cmd.product.ID] = cmd.product
				cmd.reply <- commandResult{product: cmd.product}
			case "delete":
				if _, ok := products[cmd.id]; !ok {
					cmd.reply <- commandResult{err: ErrNotFound}
					continue
				}
				delete(products, cmd.id)
				for i, id := range order {
					if id == cmd.id {
						order = append(order[:i], order[i+1:]...)
						break
					}
				}
				cmd.reply <- commandResult{}
			default:
				cmd.reply <- commandResult{err: errors.New("unknown menu action")}
			}
		case <-s.quit:
			return
		}
	}
}

// List returns the catalogue in menu order.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	res, err := s.do(ctx, command{action: "list"})
	return res.products, err
}

// Get looks a product up by id.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	res, err := s.do(ctx, command{action: "get", id: id})
	return res.product, err
}

// Put adds a product or replaces the one with the same id.
func (s *Service) Put(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	res, err := s.do(ctx, command{action: "put", product: p})
	return res.product, err
}

// Delete removes a product from the menu.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.do(ctx, command{action: "delete", id: id})
	return err
}

// Close stops the background goroutine when the application shuts down.
func (s *Service) Close() {
	close(s.quit)
}

func (s *Service) do(ctx context.Context, cmd command) (commandResult, error) {
	cmd.reply = make(chan commandResult, 1)

	select {
	case s.commands <- cmd:
	case <-s.quit:
		return commandResult{}, errors.New("menu service closed")
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	case <-time.After(2 * time.Second):
		return commandResult{}, errors.New("menu queue is busy")
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	case <-time.After(2 * time.Second):
		return commandResult{}, errors.New("menu " + cmd.action + " timed out")
	}
}
