/*
sweeper.go - Background removal of idle sessions

PURPOSE:
  Periodically tears down sessions that have been idle longer than the
  registry TTL, so abandoned logins do not hold Backend Service tokens and
  record sets forever.

USAGE:
  sweeper := NewSweeper(sessions, time.Minute, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - sessions.go: Sessions.Sweep
*/
package api

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/logging"
)

type Sweeper struct {
	Sessions *Sessions
	Interval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweeper(sessions *Sessions, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		Sessions: sessions,
		Interval: interval,
		log:      logging.OrNop(log).Named("api.sweeper"),
	}
}

// Start begins sweeping. Calling Start on a running sweeper does nothing.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		return
	}
	sw.ticker = time.NewTicker(sw.Interval)
	sw.stop = make(chan struct{})
	sw.wg.Add(1)
	go sw.run(sw.ticker, sw.stop)

	sw.log.Info("started", zap.Duration("interval", sw.Interval))
}

// Stop halts the sweeper and waits for an in-progress sweep to finish.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker == nil {
		return
	}
	sw.ticker.Stop()
	close(sw.stop)
	sw.wg.Wait()
	sw.ticker = nil
	sw.log.Info("stopped")
}

func (sw *Sweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sw.wg.Done()

	for {
		select {
		case <-ticker.C:
			if n := sw.Sessions.Sweep(); n > 0 {
				sw.log.Info("expired idle sessions", zap.Int("count", n))
			}
		case <-stop:
			return
		}
	}
}
