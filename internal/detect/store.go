package detect

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"security-monitor/internal/util"
)

// CounterStore tracks the sliding-window state the detectors consult:
// failed-auth counts per (ip, user) and request timestamps per ip. The
// in-memory implementation is the default; a Redis-backed one exists for
// multi-instance deployments where the state must be shared.
type CounterStore interface {
	// IncrFailures bumps the failure counter for key and returns the new
	// count. The counter is discarded once window has elapsed since its
	// first entry, not since its last.
	IncrFailures(ctx context.Context, key string, window time.Duration) (int, error)

	// RecordRequest appends the current time to the per-IP request window,
	// prunes entries older than window, and returns the pruned length.
	RecordRequest(ctx context.Context, ip string, window time.Duration) (int, error)
}

type failureEntry struct {
	firstSeen time.Time
	count     int
}

type shard struct {
	mu       sync.Mutex
	failures map[string]*failureEntry
	requests map[string][]time.Time
}

// MemoryStore shards its maps by key hash so concurrent requests rarely
// contend on the same lock. A background janitor prunes windows that are
// no longer being touched.
type MemoryStore struct {
	shards        []*shard
	failureWindow time.Duration
	requestWindow time.Duration
	cancel        context.CancelFunc
	clock         func() time.Time
}

func NewMemoryStore(shardCount int, failureWindow, requestWindow time.Duration) *MemoryStore {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{
			failures: make(map[string]*failureEntry),
			requests: make(map[string][]time.Time),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &MemoryStore{
		shards:        shards,
		failureWindow: failureWindow,
		requestWindow: requestWindow,
		cancel:        cancel,
		clock:         time.Now,
	}
	go store.janitor(ctx)

	return store
}

func (m *MemoryStore) shardFor(key string) *shard {
	h := murmur3.Sum32([]byte(key))
	return m.shards[int(h)%len(m.shards)]
}

func (m *MemoryStore) IncrFailures(_ context.Context, key string, window time.Duration) (int, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.clock()
	w, ok := s.failures[key]
	if !ok || now.Sub(w.firstSeen) > window {
		w = &failureEntry{firstSeen: now}
		s.failures[key] = w
	}
	w.count++
	return w.count, nil
}

func (m *MemoryStore) RecordRequest(_ context.Context, ip string, window time.Duration) (int, error) {
	s := m.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.clock()
	cutoff := now.Add(-window)
	times := s.requests[ip]

	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.requests[ip] = kept
	return len(kept), nil
}

// Close stops the janitor goroutine.
func (m *MemoryStore) Close() {
	m.cancel()
}

func (m *MemoryStore) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.prune()
		case <-ctx.Done():
			return
		}
	}
}

// prune drops expired failure windows and idle request windows. Entries
// pruned here would also be discarded on next access; the janitor just
// keeps abandoned keys from accumulating.
func (m *MemoryStore) prune() {
	now := m.clock()
	removed := 0

	for _, s := range m.shards {
		s.mu.Lock()
		for key, w := range s.failures {
			if now.Sub(w.firstSeen) > m.failureWindow {
				delete(s.failures, key)
				removed++
			}
		}
		for ip, times := range s.requests {
			if len(times) == 0 || now.Sub(times[len(times)-1]) > m.requestWindow {
				delete(s.requests, ip)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		util.Debug("Pruned detection windows", util.Int("removed", removed))
	}
}
