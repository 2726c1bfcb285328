/*
File: limiter.go
Version: 2.0.0
Description: Per-client token buckets for the check API, with pacing for small bursts.
             Client state lives in a sharded map and idle clients are swept periodically.
*/

package main

import (
	"context"
	"fmt"
	"hash/maphash"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimitAction is the limiter's verdict on one request.
type LimitAction int

const (
	LimitAllow LimitAction = iota
	LimitDelay
	LimitDrop
)

func (a LimitAction) String() string {
	switch a {
	case LimitAllow:
		return "ALLOW"
	case LimitDelay:
		return "DELAY"
	case LimitDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

const (
	limitShardCount = 64
	// Requests needing a longer wait than this are dropped instead of paced.
	maxPacingDelay = 500 * time.Millisecond
)

type clientState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterShard struct {
	sync.Mutex
	clients map[string]*clientState
}

type Limiter struct {
	shards [limitShardCount]*limiterShard
	config RateLimitConfig
	seed   maphash.Seed
	now    func() time.Time
}

func NewLimiter(cfg RateLimitConfig) *Limiter {
	lm := &Limiter{config: cfg, seed: maphash.MakeSeed(), now: time.Now}
	for i := range lm.shards {
		lm.shards[i] = &limiterShard{clients: make(map[string]*clientState)}
	}
	return lm
}

func (lm *Limiter) getShard(key string) *limiterShard {
	return lm.shards[maphash.String(lm.seed, key)&(limitShardCount-1)]
}

// Check reserves a token for the client. Returns action, delay, and reason string.
func (lm *Limiter) Check(clientIP net.IP) (LimitAction, time.Duration, string) {
	if lm == nil || !lm.config.Enabled || clientIP == nil {
		return LimitAllow, 0, ""
	}

	key := clientIP.String()
	shard := lm.getShard(key)
	now := lm.now()

	shard.Lock()
	state, ok := shard.clients[key]
	if !ok {
		state = &clientState{limiter: rate.NewLimiter(rate.Limit(lm.config.ClientQPS), lm.config.ClientBurst)}
		shard.clients[key] = state
	}
	state.lastSeen = now
	reservation := state.limiter.ReserveN(now, 1)
	shard.Unlock()

	if !reservation.OK() {
		return LimitDrop, 0, "Client Rate Limit Exceeded"
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return LimitAllow, 0, ""
	}
	if delay <= maxPacingDelay {
		return LimitDelay, delay, fmt.Sprintf("Client QPS Pacing (IP: %s, Delay: %v)", key, delay)
	}

	reservation.CancelAt(now)
	return LimitDrop, 0, fmt.Sprintf("Client QPS Exceeded (IP: %s, Required Delay: %v > Limit: %v)", key, delay, maxPacingDelay)
}

// StartCleanupRoutine sweeps idle clients until ctx is done.
func (lm *Limiter) StartCleanupRoutine(ctx context.Context) {
	if lm == nil || !lm.config.Enabled {
		return
	}
	interval := lm.config.parsedCleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	LogInfo("[LIMITER] Starting cleanup routine (Interval: %v)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			LogInfo("[LIMITER] Stopping cleanup routine")
			return
		case <-ticker.C:
			lm.cleanup()
		}
	}
}

func (lm *Limiter) cleanup() int {
	expiration := lm.config.parsedClientExpiration
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	now := lm.now()
	removed := 0
	for _, shard := range lm.shards {
		shard.Lock()
		for ip, state := range shard.clients {
			if now.Sub(state.lastSeen) > expiration {
				delete(shard.clients, ip)
				removed++
			}
		}
		shard.Unlock()
	}
	if removed > 0 {
		LogDebug("[LIMITER] Cleaned up %d idle client limiters", removed)
	}
	return removed
}
