// Package cache holds rendered report fragments between ledger writes.
package cache

import (
	"context"
	"sync"
	"time"

	"dailyledger/internal/log"
)

// Cache is what the Manager needs from a registered cache.
type Cache interface {
	// Purge drops every entry; the server calls it after each ledger write.
	Purge()
	CleanExpired() int
	Size() int
}

// Manager owns the caches of a process: it evicts expired entries in the
// background and purges them all when the ledger changes.
type Manager struct {
	mu     sync.Mutex
	caches []Cache
	logger *log.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

func (m *Manager) Register(c Cache) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

func (m *Manager) registered() []Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Cache(nil), m.caches...)
}

// PurgeAll empties every registered cache.
func (m *Manager) PurgeAll() {
	for _, c := range m.registered() {
		c.Purge()
	}
}

// CleanAll runs one eviction pass and returns the number of removed entries.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.registered() {
		total += c.CleanExpired()
	}
	return total
}

// Entries is the number of live entries across registered caches.
func (m *Manager) Entries() int {
	total := 0
	for _, c := range m.registered() {
		total += c.Size()
	}
	return total
}

// StartCleanup runs CleanAll every interval until ctx is done or Stop is
// called.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.CleanAll(); n > 0 {
					m.logger.Debug("Expired cache entries removed", log.FieldCount, n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}
