// Package cache holds memoized views: month options and category breakdowns
// keyed by user and data version, and PIN unlock sessions.
package cache

import (
	"log/slog"
	"time"
)

// Cache is the subset of LRUCache the HTTP layer depends on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically purges expired entries from registered caches.
type Janitor struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{
		caches: caches,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the purge loop every interval until Stop is called.
func (j *Janitor) Start(interval time.Duration) {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := j.Sweep(); n > 0 {
					slog.Debug("Expired cache entries removed", "component", "cache", "count", n)
				}
			case <-j.stop:
				return
			}
		}
	}()
}

// Sweep purges all registered caches once and returns the number of entries
// removed.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the loop started by Start and waits for it.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
