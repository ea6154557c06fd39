package cart

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"velora-storefront/internal/dto"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("cart line not found")

	// ErrOutOfStock is the client's pre-flight rejection based on cached
	// variant stock. It is advisory only; the server re-verifies at order
	// time and its InsufficientStock answer always wins.
	ErrOutOfStock = errors.New("product is out of stock")
)

// Rules are the pricing parameters the store needs to recompute snapshot
// totals locally, mirroring the server's computation.
type Rules struct {
	ShippingFee   decimal.Decimal
	FreeThreshold decimal.Decimal
}

// lineState tags each line as either server-confirmed or optimistic. An
// optimistic write keeps the prior confirmed value alongside, so rollback is
// simply dropping the optimistic layer, never reconstructed from elsewhere.
type lineState struct {
	confirmed  dto.CartLine
	optimistic *dto.CartLine
	removed    bool
	pendingAdd bool
	revision   uint64
}

func (st *lineState) effective() (dto.CartLine, bool) {
	if st.removed {
		return dto.CartLine{}, false
	}
	if st.optimistic != nil {
		return *st.optimistic, true
	}
	if st.pendingAdd {
		return dto.CartLine{}, false
	}
	return st.confirmed, true
}

// Store holds the client's believed-current cart. Every mutation recomputes
// the snapshot under the same lock, so lines and aggregates can never be
// observed disagreeing, even across an optimistic+rollback cycle.
type Store struct {
	mu         sync.Mutex
	lines      map[int64]*lineState
	stock      map[int64][]dto.ProductVariant
	rules      Rules
	snapshot   dto.CartSnapshot
	nextTempID int64
}

func NewStore(rules Rules) *Store {
	return &Store{
		lines: make(map[int64]*lineState),
		stock: make(map[int64][]dto.ProductVariant),
		rules: rules,
	}
}

// Lines returns the effective lines in stable id order.
func (s *Store) Lines() []dto.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLines()
}

func (s *Store) Snapshot() dto.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Store) Line(lineID int64) (dto.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lines[lineID]
	if !ok {
		return dto.CartLine{}, false
	}
	return st.effective()
}

// PrimeStock caches a product's variants for the pre-flight check.
func (s *Store) PrimeStock(productID int64, variants []dto.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = variants
}

// StockDepleted reports whether every cached variant of the product has
// zero stock. Unknown products are not considered depleted.
func (s *Store) StockDepleted(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	variants, ok := s.stock[productID]
	if !ok || len(variants) == 0 {
		return false
	}
	for _, v := range variants {
		if v.StockQuantity > 0 {
			return false
		}
	}
	return true
}

// SetQuantity applies the new quantity optimistically and returns the
// revision guarding the eventual sync response.
func (s *Store) SetQuantity(lineID int64, qty int) (uint64, error) {
	if qty < 1 {
		return 0, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.removed {
		return 0, ErrLineNotFound
	}

	next, _ := st.effective()
	next.Quantity = qty
	next.LineTotal = next.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	st.optimistic = &next
	st.revision++

	s.recompute()
	return st.revision, nil
}

// AddPending inserts an optimistic line under a temporary negative id until
// the server assigns a real one.
func (s *Store) AddPending(productID, variantID int64, qty int) (int64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTempID--
	tempID := s.nextTempID
	st := &lineState{
		pendingAdd: true,
		revision:   1,
		optimistic: &dto.CartLine{
			ID:        tempID,
			ProductID: productID,
			VariantID: variantID,
			Quantity:  qty,
		},
	}
	s.lines[tempID] = st

	s.recompute()
	return tempID, st.revision
}

// MarkRemoved hides the line optimistically; Confirm with a nil line makes
// the removal final, Rollback restores the confirmed value.
func (s *Store) MarkRemoved(lineID int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.removed {
		return 0, ErrLineNotFound
	}
	st.removed = true
	st.revision++

	s.recompute()
	return st.revision, nil
}

// MarkAllRemoved is the optimistic form of clear().
func (s *Store) MarkAllRemoved() map[int64]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs := make(map[int64]uint64, len(s.lines))
	for id, st := range s.lines {
		if st.removed {
			continue
		}
		st.removed = true
		st.revision++
		revs[id] = st.revision
	}

	s.recompute()
	return revs
}

// Confirm installs the server's authoritative line for a sync that was
// issued at rev. A response older than the line's current revision is
// dropped: a later local edit or refresh has already superseded it.
func (s *Store) Confirm(lineID int64, rev uint64, server *dto.CartLine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.revision != rev {
		return false
	}

	if server == nil {
		delete(s.lines, lineID)
		s.recompute()
		return true
	}

	if server.ID != lineID {
		// server assigned the real id for a pending add, or folded the add
		// into an existing line
		delete(s.lines, lineID)
		existing, found := s.lines[server.ID]
		if !found {
			existing = &lineState{revision: 1}
			s.lines[server.ID] = existing
		}
		existing.confirmed = *server
		existing.optimistic = nil
		existing.removed = false
		existing.pendingAdd = false
	} else {
		st.confirmed = *server
		st.optimistic = nil
		st.removed = false
		st.pendingAdd = false
	}

	s.recompute()
	return true
}

// Rollback reverts the optimistic layer for a failed sync issued at rev,
// restoring the last server-confirmed value.
func (s *Store) Rollback(lineID int64, rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.revision != rev {
		return false
	}

	if st.pendingAdd {
		delete(s.lines, lineID)
	} else {
		st.optimistic = nil
		st.removed = false
	}

	s.recompute()
	return true
}

// ReplaceAll swaps the whole cart for the server's view and bumps every
// revision, so in-flight sync responses issued before the refresh cannot
// resurrect stale data. It reports which line ids survive.
func (s *Store) ReplaceAll(lines []dto.CartLine) map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[int64]bool, len(lines))
	fresh := make(map[int64]*lineState, len(lines))
	for _, line := range lines {
		rev := uint64(1)
		if old, ok := s.lines[line.ID]; ok {
			rev = old.revision + 1
		}
		fresh[line.ID] = &lineState{confirmed: line, revision: rev}
		present[line.ID] = true
	}
	s.lines = fresh

	s.recompute()
	return present
}

// Reset empties the cart, used on session invalidation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[int64]*lineState)
	s.recompute()
}

func (s *Store) effectiveLines() []dto.CartLine {
	out := make([]dto.CartLine, 0, len(s.lines))
	for _, st := range s.lines {
		if line, ok := st.effective(); ok {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// recompute rebuilds the snapshot from the effective lines. Callers hold
// the lock, so a mutation and its totals are published together.
func (s *Store) recompute() {
	lines := s.effectiveLines()

	subtotal := decimal.Zero
	totalItems := 0
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		totalItems += line.Quantity
	}

	shipping := decimal.Zero
	if totalItems > 0 && subtotal.LessThan(s.rules.FreeThreshold) {
		shipping = s.rules.ShippingFee
	}

	s.snapshot = dto.CartSnapshot{
		TotalItems:  totalItems,
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Discount:    decimal.Zero,
		FinalAmount: subtotal.Add(shipping),
	}
}
