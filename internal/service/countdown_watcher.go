package service

import (
	"context"
	"sync"
	"time"

	"vcf-drop/pkg/logger"
)

// countdownWatcher polls the campaign so an expired countdown locks even when
// no client is polling. Expiry is judged on elapsed wall-clock time, so a
// missed tick only delays the lock.
type countdownWatcher struct {
	campaign  CampaignService
	interval  time.Duration
	logger    *logger.Logger
	ticker    *time.Ticker
	stop      chan struct{}
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
}

// NewCountdownWatcher creates a watcher that checks every interval
func NewCountdownWatcher(campaign CampaignService, interval time.Duration, logger *logger.Logger) Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &countdownWatcher{
		campaign: campaign,
		interval: interval,
		logger:   logger,
	}
}

// Start runs one check immediately, then one per interval
func (w *countdownWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}

	w.logger.WithField("interval", w.interval.String()).Info("Starting countdown watcher...")

	w.check(ctx)

	w.ticker = time.NewTicker(w.interval)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.ticker, w.stop, w.done)

	w.isRunning = true
	return nil
}

// Stop halts the watcher and waits for an in-flight check to finish
func (w *countdownWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.logger.Info("Stopping countdown watcher...")
	w.ticker.Stop()
	close(w.stop)
	w.isRunning = false

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.logger.Info("Countdown watcher stopped")
	return nil
}

func (w *countdownWatcher) run(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			w.check(ctx)
			cancel()
		case <-stop:
			return
		}
	}
}

func (w *countdownWatcher) check(ctx context.Context) {
	locked, err := w.campaign.RefreshCountdown(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("Countdown check failed")
		return
	}
	if locked {
		w.logger.Info("Countdown watcher locked the campaign")
	}
}
