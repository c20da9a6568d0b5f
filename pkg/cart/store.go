package cart

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// selector picks the pack an update targets from the state the update is applied to.
type selector func(snap *Snapshot) (int, error)

// activePack targets whatever pack is active when the update lands.
func activePack(snap *Snapshot) (int, error) {
	return snap.Active, checkIndex(snap, snap.Active)
}

// packAt targets an explicit pack index.
func packAt(index int) selector {
	return func(snap *Snapshot) (int, error) {
		return index, checkIndex(snap, index)
	}
}

// Store holds one session's packs. Writers are serialized and each commit replaces the whole
// state, so readers only ever observe a state some call returned.
type Store struct {
	mu        sync.Mutex
	committed atomic.Pointer[Snapshot]
	logger    *zap.Logger
}

// NewStore creates a cart with a single empty active pack.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	initial := initialSnapshot()
	s.committed.Store(&initial)
	return s
}

// Snapshot returns a private copy of the latest committed state.
func (s *Store) Snapshot() Snapshot {
	return s.committed.Load().clone()
}

// Add puts one unit of item into the active pack.
func (s *Store) Add(item LineItem) (Snapshot, error) {
	return s.add(activePack, item)
}

// AddToPack puts one unit of item into the given pack. An entry with the same id keeps its
// own fields and gains one unit; otherwise a copy of item is appended with quantity 1.
func (s *Store) AddToPack(pack int, item LineItem) (Snapshot, error) {
	return s.add(packAt(pack), item)
}

func (s *Store) add(target selector, item LineItem) (Snapshot, error) {
	if strings.TrimSpace(item.ID) == "" {
		return s.Snapshot(), fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if err := CheckPrice(item.Price); err != nil {
		return s.Snapshot(), fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return s.update("add", func(next *Snapshot) error {
		idx, err := target(next)
		if err != nil {
			return err
		}
		p := next.Packs[idx]
		if pos := p.index(item.ID); pos >= 0 {
			p[pos].Quantity++
			return nil
		}
		added := item.clone()
		added.Quantity = 1
		next.Packs[idx] = append(p, added)
		return nil
	}, zap.String("item", item.ID))
}

// Remove takes one unit of id out of the active pack.
func (s *Store) Remove(id string) (Snapshot, error) {
	return s.remove(activePack, id)
}

// RemoveFromPack takes one unit of id out of the given pack and drops the entry at zero.
// Removing an id the pack does not hold changes nothing.
func (s *Store) RemoveFromPack(pack int, id string) (Snapshot, error) {
	return s.remove(packAt(pack), id)
}

func (s *Store) remove(target selector, id string) (Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return s.Snapshot(), fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	return s.update("remove", func(next *Snapshot) error {
		idx, err := target(next)
		if err != nil {
			return err
		}
		p := next.Packs[idx]
		pos := p.index(id)
		if pos < 0 {
			return nil
		}
		p[pos].Quantity--
		if p[pos].Quantity <= 0 {
			next.Packs[idx] = slices.Delete(p, pos, pos+1)
		}
		return nil
	}, zap.String("item", id))
}

// Increment adds one unit to an entry of the active pack.
func (s *Store) Increment(id string) (Snapshot, error) {
	return s.increment(activePack, id)
}

// IncrementInPack adds one unit to an existing entry; unknown ids are ignored.
func (s *Store) IncrementInPack(pack int, id string) (Snapshot, error) {
	return s.increment(packAt(pack), id)
}

func (s *Store) increment(target selector, id string) (Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return s.Snapshot(), fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	return s.update("increment", func(next *Snapshot) error {
		idx, err := target(next)
		if err != nil {
			return err
		}
		if pos := next.Packs[idx].index(id); pos >= 0 {
			next.Packs[idx][pos].Quantity++
		}
		return nil
	}, zap.String("item", id))
}

// CreatePack appends an empty pack and makes it active.
func (s *Store) CreatePack() (Snapshot, error) {
	return s.update("create_pack", func(next *Snapshot) error {
		next.Packs = append(next.Packs, Pack{})
		next.Active = len(next.Packs) - 1
		return nil
	})
}

// DuplicatePack appends a deep copy of the source pack and makes the copy active.
func (s *Store) DuplicatePack(source int) (Snapshot, error) {
	return s.update("duplicate_pack", func(next *Snapshot) error {
		if err := checkIndex(next, source); err != nil {
			return err
		}
		next.Packs = append(next.Packs, next.Packs[source].clone())
		next.Active = len(next.Packs) - 1
		return nil
	}, zap.Int("source", source))
}

// SwitchPack makes another existing pack active.
func (s *Store) SwitchPack(index int) (Snapshot, error) {
	return s.update("switch_pack", func(next *Snapshot) error {
		if err := checkIndex(next, index); err != nil {
			return err
		}
		next.Active = index
		return nil
	}, zap.Int("pack", index))
}

// EmptyCart resets the cart to one empty active pack.
func (s *Store) EmptyCart() Snapshot {
	snap, _ := s.update("empty", func(next *Snapshot) error {
		*next = initialSnapshot()
		return nil
	})
	return snap
}

// update applies fn to a copy of the committed state and commits the copy only when fn succeeds.
// The new state is computed from the copy, never from values read before the lock was taken.
func (s *Store) update(op string, fn func(next *Snapshot) error, fields ...zap.Field) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.committed.Load()
	next := current.clone()
	if err := fn(&next); err != nil {
		s.logger.Debug("cart update rejected", append(fields, zap.String("op", op), zap.Error(err))...)
		return current.clone(), err
	}
	s.committed.Store(&next)
	s.logger.Debug("cart updated", append(fields,
		zap.String("op", op),
		zap.Int("packs", len(next.Packs)),
		zap.Int("active", next.Active),
	)...)
	return next.clone(), nil
}

func checkIndex(snap *Snapshot, index int) error {
	if index < 0 || index >= len(snap.Packs) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidIndex, index, len(snap.Packs))
	}
	return nil
}
