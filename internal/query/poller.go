package query

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller re-fetches a single query on a fixed interval. The dashboard runs
// one for the loader status so the header reflects cache warmup progress
// without waiting for a page load.
type Poller struct {
	logger   zerolog.Logger
	interval time.Duration
	refresh  func(ctx context.Context) error
	stopChan chan struct{}
}

// NewPoller creates a poller around a refresh function.
func NewPoller(logger zerolog.Logger, interval time.Duration, refresh func(ctx context.Context) error) *Poller {
	return &Poller{
		logger:   logger.With().Str("component", "status_poller").Logger(),
		interval: interval,
		refresh:  refresh,
		stopChan: make(chan struct{}),
	}
}

// Start runs the poll loop until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting status poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Status poller stopping (context cancelled)")
			return
		case <-p.stopChan:
			p.logger.Info().Msg("Status poller stopping (stop signal)")
			return
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Status poll failed")
			}
		}
	}
}

// Stop signals the poller to stop.
func (p *Poller) Stop() {
	close(p.stopChan)
}
