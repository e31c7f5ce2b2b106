package proxypool

import (
	"errors"
	"sync"
	"time"

	"lokipool/internal/shared/logger"
	"lokipool/proxypool/model"
)

// ErrIndexOutOfRange is returned by Goto for positions outside the
// current ordered view. The selection is left unchanged.
var ErrIndexOutOfRange = errors.New("index out of range")

// Selector holds the single "current upstream" value consulted by
// every relay session. It keeps only the address and re-resolves it
// against the live pool on every read, so evictions are always
// observed. All transitions are serialized by one mutex and never
// block on I/O.
type Selector struct {
	pool *Manager

	mu         sync.Mutex
	current    string // "" means NoSelection
	autoSwitch bool
	interval   time.Duration
	nextDue    time.Time
}

// NewSelector creates the selector and attaches it to the pool so
// sweeps can trigger eviction-driven reselection.
func NewSelector(pool *Manager, autoSwitch bool, interval time.Duration) *Selector {
	s := &Selector{
		pool:       pool,
		autoSwitch: autoSwitch,
		interval:   interval,
		nextDue:    time.Now().Add(interval),
	}
	pool.selector = s
	return s
}

// Current resolves the active selection against the live pool.
// It returns false when no selection exists or the selected address
// has been evicted since.
func (s *Selector) Current() (model.ProxyRecord, bool) {
	s.mu.Lock()
	addr := s.current
	s.mu.Unlock()

	if addr == "" {
		return model.ProxyRecord{}, false
	}
	return s.pool.Lookup(addr)
}

// PromoteBest selects the top entry of the ordered view, or clears
// the selection when the pool is empty.
func (s *Selector) PromoteBest() (model.ProxyRecord, bool) {
	view := s.pool.OrderedAddresses()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(view) == 0 {
		s.current = ""
		return model.ProxyRecord{}, false
	}
	s.current = view[0]
	s.resetTimerLocked(time.Now())
	return s.pool.Lookup(view[0])
}

// EnsureValid re-selects only when the current selection is missing
// from the pool; a valid selection is left alone.
func (s *Selector) EnsureValid() {
	s.mu.Lock()
	addr := s.current
	s.mu.Unlock()

	if addr != "" {
		if rec, ok := s.pool.Lookup(addr); ok && rec.Alive() {
			return
		}
	}
	if rec, ok := s.PromoteBest(); ok {
		l := logger.WithComponent("Selector")
		l.Info().
			Str("address", rec.Address).
			Dur("latency", rec.Latency).
			Msg("Reselected active proxy.")
	}
}

// Next advances to the entry following the current one in the ordered
// view, wrapping around after the last entry. With no selection it
// behaves like PromoteBest.
func (s *Selector) Next() (model.ProxyRecord, bool) {
	view := s.pool.OrderedAddresses()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(view) == 0 {
		s.current = ""
		return model.ProxyRecord{}, false
	}

	idx := -1
	if s.current != "" {
		for i, addr := range view {
			if addr == s.current {
				idx = i
				break
			}
		}
	}
	next := view[(idx+1)%len(view)]
	s.current = next
	s.resetTimerLocked(time.Now())
	return s.pool.Lookup(next)
}

// Goto selects the entry at the given 1-based position in the ordered
// view. An invalid position returns ErrIndexOutOfRange and leaves the
// selection untouched.
func (s *Selector) Goto(index int) (model.ProxyRecord, error) {
	view := s.pool.OrderedAddresses()

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(view) {
		return model.ProxyRecord{}, ErrIndexOutOfRange
	}
	addr := view[index-1]
	s.current = addr
	s.resetTimerLocked(time.Now())
	rec, _ := s.pool.Lookup(addr)
	return rec, nil
}

// RotateIfDue advances the selection when auto-switch is enabled and
// the rotation interval has elapsed since the last switch. Returns
// the new selection and whether a rotation happened.
func (s *Selector) RotateIfDue(now time.Time) (model.ProxyRecord, bool) {
	s.mu.Lock()
	due := s.autoSwitch && s.interval > 0 && !now.Before(s.nextDue)
	s.mu.Unlock()

	if !due {
		return model.ProxyRecord{}, false
	}

	l := logger.WithComponent("Selector/AutoSwitch")
	rec, ok := s.Next()
	if !ok {
		l.Warn().Msg("Rotation due but no proxy is available.")
		// Push the timer forward so an empty pool does not retrigger
		// every tick.
		s.mu.Lock()
		s.resetTimerLocked(now)
		s.mu.Unlock()
		return model.ProxyRecord{}, false
	}
	l.Info().Str("address", rec.Address).Dur("latency", rec.Latency).Msg("Switched to new proxy.")
	return rec, true
}

// resetTimerLocked restarts the rotation countdown. Must be called
// with the selector mutex held.
func (s *Selector) resetTimerLocked(now time.Time) {
	s.nextDue = now.Add(s.interval)
}
