package detect

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"security-monitor/internal/util"
)

const suspiciousSetKey = "secmon:suspicious_ips"

// SuspiciousIPs is the append-only set of addresses the brute-force
// detector has flagged. Downstream collaborators consult it for blocking
// decisions. When a Redis client is supplied, additions are mirrored to a
// shared set so other instances see them too.
type SuspiciousIPs struct {
	mu    sync.RWMutex
	ips   map[string]time.Time
	redis *redis.Client
}

func NewSuspiciousIPs(redisClient *redis.Client) *SuspiciousIPs {
	return &SuspiciousIPs{
		ips:   make(map[string]time.Time),
		redis: redisClient,
	}
}

// Add flags an address. Re-adding is a no-op; the first-flagged time wins.
func (s *SuspiciousIPs) Add(ctx context.Context, ip string) {
	s.mu.Lock()
	if _, ok := s.ips[ip]; !ok {
		s.ips[ip] = time.Now()
	}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.SAdd(ctx, suspiciousSetKey, ip).Err(); err != nil {
			util.Warn("Failed to mirror suspicious ip to redis",
				util.String("ip", ip),
				util.ErrorField(err),
			)
		}
	}
}

// Contains reports whether an address has been flagged by this instance.
func (s *SuspiciousIPs) Contains(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ips[ip]
	return ok
}

// All returns a snapshot of the flagged addresses.
func (s *SuspiciousIPs) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ips))
	for ip := range s.ips {
		out = append(out, ip)
	}
	return out
}
