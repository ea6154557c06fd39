package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"velora-storefront/internal/api"
	"velora-storefront/internal/dto"
)

// API is the slice of the storefront REST surface the cart needs.
type API interface {
	GetCart(ctx context.Context) (*dto.CartResponse, error)
	AddLine(ctx context.Context, productID, variantID int64, qty int) (*dto.CartLine, error)
	UpdateLine(ctx context.Context, lineID int64, qty int) (*dto.CartLine, error)
	RemoveLine(ctx context.Context, lineID int64) error
	ClearCart(ctx context.Context) error
	ProductAttributes(ctx context.Context, productID int64) ([]dto.ProductVariant, error)
}

type SyncConfig struct {
	DebounceWindow time.Duration
	RefreshTimeout time.Duration
	RequestTimeout time.Duration
}

// Syncer coalesces rapid local mutations into a bounded number of network
// calls and reconciles the authoritative responses back into the store.
// Debounce is per line: concurrent edits to different lines never block
// each other.
type Syncer struct {
	store *Store
	api   API
	cfg   SyncConfig

	mu     sync.Mutex
	timers map[int64]*time.Timer
	sf     singleflight.Group

	// OnSyncError receives typed failures for a line after its state was
	// rolled back. OnSessionExpired fires once per 401; by then the cart
	// has been reset to empty.
	OnSyncError      func(lineID int64, err error)
	OnSessionExpired func()
}

func NewSyncer(store *Store, apiClient API, cfg SyncConfig) *Syncer {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 500 * time.Millisecond
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Syncer{
		store:  store,
		api:    apiClient,
		cfg:    cfg,
		timers: make(map[int64]*time.Timer),
	}
}

func (s *Syncer) Store() *Store { return s.store }

// SetQuantity applies the change locally right away and (re)starts the
// line's debounce timer; only the final quantity of a burst reaches the
// network.
func (s *Syncer) SetQuantity(lineID int64, qty int) error {
	rev, err := s.store.SetQuantity(lineID, qty)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if t, ok := s.timers[lineID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.DebounceWindow, func() {
		s.mu.Lock()
		// a newer edit may have re-armed the line between firing and now;
		// only the firing timer removes its own registration
		if s.timers[lineID] == timer {
			delete(s.timers, lineID)
		}
		s.mu.Unlock()
		s.syncLine(lineID, qty, rev)
	})
	s.timers[lineID] = timer
	s.mu.Unlock()
	return nil
}

// AddLine rejects immediately when every cached variant of the product is
// out of stock; otherwise it inserts an optimistic pending line and syncs
// without debounce.
func (s *Syncer) AddLine(productID, variantID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if s.store.StockDepleted(productID) {
		return ErrOutOfStock
	}

	tempID, rev := s.store.AddPending(productID, variantID, qty)
	go func() {
		ctx, cancel := s.requestContext()
		defer cancel()

		line, err := s.api.AddLine(ctx, productID, variantID, qty)
		if err != nil {
			s.store.Rollback(tempID, rev)
			s.fail(tempID, err)
			return
		}
		s.store.Confirm(tempID, rev, line)
	}()
	return nil
}

func (s *Syncer) RemoveLine(lineID int64) error {
	rev, err := s.store.MarkRemoved(lineID)
	if err != nil {
		return err
	}

	s.cancelTimer(lineID)
	go func() {
		ctx, cancel := s.requestContext()
		defer cancel()

		if err := s.api.RemoveLine(ctx, lineID); err != nil {
			s.store.Rollback(lineID, rev)
			s.fail(lineID, err)
			return
		}
		s.store.Confirm(lineID, rev, nil)
	}()
	return nil
}

func (s *Syncer) Clear() {
	revs := s.store.MarkAllRemoved()
	s.cancelAllTimers()

	go func() {
		ctx, cancel := s.requestContext()
		defer cancel()

		if err := s.api.ClearCart(ctx); err != nil {
			for id, rev := range revs {
				s.store.Rollback(id, rev)
			}
			s.fail(0, err)
			return
		}
		for id, rev := range revs {
			s.store.Confirm(id, rev, nil)
		}
	}()
}

// Refresh replaces the local cart with the server's. Concurrent calls are
// collapsed into one request; a timeout falls back to the last-known state
// instead of failing, so a slow network never blocks checkout entry.
func (s *Syncer) Refresh(force bool) error {
	if force {
		s.sf.Forget("refresh")
	}

	_, err, _ := s.sf.Do("refresh", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
		defer cancel()

		resp, err := s.api.GetCart(ctx)
		if err != nil {
			if errors.Is(err, api.ErrNetworkTimeout) || errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Msg("cart refresh timed out, keeping last-known cart")
				return nil, nil
			}
			if errors.Is(err, api.ErrSessionExpired) {
				s.sessionExpired()
				return nil, err
			}
			return nil, err
		}

		present := s.store.ReplaceAll(resp.Lines)

		// debounce timers for lines the server no longer has are dead wood
		s.mu.Lock()
		for id, t := range s.timers {
			if !present[id] {
				t.Stop()
				delete(s.timers, id)
			}
		}
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// FetchAttributes primes the store's stock cache for a product.
func (s *Syncer) FetchAttributes(ctx context.Context, productID int64) ([]dto.ProductVariant, error) {
	variants, err := s.api.ProductAttributes(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.store.PrimeStock(productID, variants)
	return variants, nil
}

// Stop cancels all pending debounce timers without issuing their syncs.
func (s *Syncer) Stop() {
	s.cancelAllTimers()
}

func (s *Syncer) syncLine(lineID int64, qty int, rev uint64) {
	ctx, cancel := s.requestContext()
	defer cancel()

	line, err := s.api.UpdateLine(ctx, lineID, qty)
	if err != nil {
		if s.store.Rollback(lineID, rev) {
			s.fail(lineID, err)
		}
		return
	}
	// the server may have clamped the quantity; its line wins
	s.store.Confirm(lineID, rev, line)
}

func (s *Syncer) fail(lineID int64, err error) {
	if errors.Is(err, api.ErrSessionExpired) {
		s.sessionExpired()
		return
	}
	log.Warn().Err(err).Int64("line_id", lineID).Msg("cart sync failed, rolled back")
	if s.OnSyncError != nil {
		s.OnSyncError(lineID, err)
	}
}

func (s *Syncer) sessionExpired() {
	s.cancelAllTimers()
	s.store.Reset()
	if s.OnSessionExpired != nil {
		s.OnSessionExpired()
	}
}

func (s *Syncer) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
}

func (s *Syncer) cancelTimer(lineID int64) {
	s.mu.Lock()
	if t, ok := s.timers[lineID]; ok {
		t.Stop()
		delete(s.timers, lineID)
	}
	s.mu.Unlock()
}

func (s *Syncer) cancelAllTimers() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}
