package sessionstore

import (
	"context"
	"sync"
	"time"
)

// SweepFunc deletes every record that expired before now and returns the
// number of records removed.
type SweepFunc func(ctx context.Context, now time.Time) (int64, error)

// Sweeper runs a SweepFunc on a fixed period until it is stopped. A failed
// sweep is reported to the error handler and the next tick tries again.
type Sweeper struct {
	interval time.Duration
	sweep    SweepFunc
	onError  func(error)
	logger   Logger
	now      func() time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepErrorHandler sets the function called with every sweep failure.
// (default logs the error.)
func WithSweepErrorHandler(fn func(error)) SweeperOption {
	return SweeperOption(func(s *Sweeper) {
		s.onError = fn
	})
}

// WithSweepLogger sets the logger used to report sweep results.
func WithSweepLogger(logger Logger) SweeperOption {
	return SweeperOption(func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// WithSweepClock sets the clock used to compute the expiration cutoff.
// (default time.Now)
func WithSweepClock(now func() time.Time) SweeperOption {
	return SweeperOption(func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	})
}

// StartSweeper starts a background goroutine calling sweep every interval.
// A non positive interval falls back to DefaultCleanupInterval. The
// goroutine runs until Stop is called.
//
// Example usage:
//
//	sw := sessionstore.StartSweeper(time.Minute, store.deleteExpired)
//	...
//	sw.Stop() // stop the cleanup
func StartSweeper(interval time.Duration, sweep SweepFunc, cfgs ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	s := &Sweeper{
		interval: interval,
		sweep:    sweep,
		logger:   DefaultLogger("sweeper"),
		now:      time.Now,
		done:     make(chan struct{}),
	}

	for _, cfg := range cfgs {
		cfg(s)
	}

	if s.onError == nil {
		logger := s.logger
		s.onError = func(err error) {
			logger.WithError(err).Error("session sweep failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	return s
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.sweep(ctx, s.now())
	if err != nil {
		// a sweep interrupted by Stop is not a failure
		if ctx.Err() != nil {
			return
		}
		s.onError(err)
		return
	}

	if n > 0 {
		s.logger.WithField("deleted", n).Debug("expired sessions swept")
	}
}

// Interval returns the sweep period.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Stop cancels the sweeper and waits for an in-flight sweep to return. It
// is safe to call Stop more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}
