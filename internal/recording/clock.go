package recording

import (
	"sync"
	"time"
)

// Clock schedules the periodic elapsed-time tick.
type Clock interface {
	// Every calls fn every d until cancel is called. cancel must not block
	// and may be called more than once.
	Every(d time.Duration, fn func()) (cancel func())
}

type tickerClock struct{}

// SystemClock is the wall clock backed by time.Ticker.
var SystemClock Clock = tickerClock{}

func (tickerClock) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
