/*
scheduler.go - Periodic estado cache refresh

PURPOSE:
  Certificates move from current to expiring to expired with the calendar
  alone, so a persisted estado goes stale without any write. The scheduler
  periodically recomputes lifecycles and rewrites the stale caches, so
  consumers that read estado directly from storage stay close to the truth.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Shares refreshEstados with POST /api/certificates/refresh
  - Never touches the cancelled flag

CONFIGURATION:
  - CheckInterval: How often to check (ESTADO_REFRESH_INTERVAL, default 1h)
  - Enabled: false when the interval is zero

USAGE:
  scheduler := NewEstadoScheduler(handler, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshEstados endpoint (manual refresh)
  - backoffice/certificates.go: StaleEstados
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/lot-engine/engine"
)

// EstadoScheduler refreshes stale certificate estado caches.
type EstadoScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastMu  sync.Mutex
	lastRun time.Time
}

// NewEstadoScheduler creates a new scheduler. A non-positive interval
// disables it.
func NewEstadoScheduler(h *Handler, interval time.Duration) *EstadoScheduler {
	return &EstadoScheduler{
		Handler:       h,
		CheckInterval: interval,
		Enabled:       interval > 0,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *EstadoScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Handler.Log.Info().Msg("estado scheduler disabled")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Handler.Log.Info().Dur("interval", s.CheckInterval).Msg("estado scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *EstadoScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Handler.Log.Info().Msg("estado scheduler stopped")
	}
}

func (s *EstadoScheduler) run() {
	defer s.wg.Done()

	s.RunNow()
	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one refresh and returns the number of rewritten caches.
func (s *EstadoScheduler) RunNow() int {
	h := s.Handler
	today := engine.Midnight(h.Now())

	refreshed, err := h.refreshEstados(context.Background(), today)
	if err != nil {
		h.Log.Error().Err(err).Msg("estado refresh failed")
		return 0
	}

	s.lastMu.Lock()
	s.lastRun = h.Now()
	s.lastMu.Unlock()

	if len(refreshed) > 0 {
		h.Log.Info().Int("refreshed", len(refreshed)).Msg("estado cache refreshed")
	}
	return len(refreshed)
}

// LastRun returns when the last successful refresh finished.
func (s *EstadoScheduler) LastRun() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun
}
