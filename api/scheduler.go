/*
scheduler.go - Periodic task catalog refresh

PURPOSE:
  Reloads the task catalog on a fixed interval so admin edits made by
  another process (or directly in the database) reach this process without
  waiting for the cache TTL to lapse on a request path.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Refreshes once immediately on start
  - A failed refresh keeps the previous cache and is logged; the next tick
    tries again

CONFIGURATION:
  - Interval: How often to refresh (CATALOG_REFRESH_INTERVAL, 0 = off)
  - Enabled: Whether the refresher is active

USAGE:
  refresher := NewCatalogRefresher(handler.Catalog, time.Minute)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - catalog/catalog.go: Refresh
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Refresher is the part of catalog.Catalog the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogRefresher periodically reloads the task catalog.
type CatalogRefresher struct {
	Catalog  Refresher
	Interval time.Duration
	Enabled  bool
	Timeout  time.Duration

	logger zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCatalogRefresher creates a refresher. A non-positive interval disables it.
func NewCatalogRefresher(c Refresher, interval time.Duration) *CatalogRefresher {
	return &CatalogRefresher{
		Catalog:  c,
		Interval: interval,
		Enabled:  interval > 0,
		Timeout:  30 * time.Second,
		logger:   log.Logger,
	}
}

func (cr *CatalogRefresher) WithLogger(l zerolog.Logger) *CatalogRefresher {
	cr.logger = l
	return cr
}

// Start begins the refresh loop.
func (cr *CatalogRefresher) Start() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.Enabled || cr.Interval <= 0 {
		cr.logger.Info().Msg("catalog refresher disabled, not starting")
		return
	}
	if cr.ticker != nil {
		return
	}

	cr.ticker = time.NewTicker(cr.Interval)
	cr.stop = make(chan struct{})
	cr.wg.Add(1)

	go cr.run(cr.ticker, cr.stop)

	cr.logger.Info().Dur("interval", cr.Interval).Msg("catalog refresher started")
}

// Stop stops the refresh loop and waits for an in-flight refresh.
func (cr *CatalogRefresher) Stop() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.ticker == nil {
		return
	}
	cr.ticker.Stop()
	close(cr.stop)
	cr.wg.Wait()
	cr.ticker = nil
	cr.logger.Info().Msg("catalog refresher stopped")
}

func (cr *CatalogRefresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cr.wg.Done()

	cr.refresh()

	for {
		select {
		case <-ticker.C:
			cr.refresh()
		case <-stop:
			return
		}
	}
}

func (cr *CatalogRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), cr.Timeout)
	defer cancel()

	if err := cr.Catalog.Refresh(ctx); err != nil {
		cr.logger.Warn().Err(err).Msg("catalog refresh failed, keeping previous snapshot")
		return
	}
	cr.logger.Debug().Msg("catalog refreshed")
}
