// Package timer schedules repeating callbacks.
package timer

import (
	"sync"
	"time"
)

// Service runs fn every interval until the returned cancel is called.
// No invocation starts after cancel returns; one already running may finish.
type Service interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// Ticker is the wall-clock Service backed by time.Ticker.
type Ticker struct{}

// Every implements Service. cancel must not be called from inside fn.
func (Ticker) Every(interval time.Duration, fn func()) func() {
	var (
		mu      sync.Mutex
		stopped bool
		stop    = make(chan struct{})
		once    sync.Once
	)

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				mu.Lock()
				if stopped {
					mu.Unlock()
					return
				}
				fn()
				mu.Unlock()
			}
		}
	}()

	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			close(stop)
		})
	}
}
