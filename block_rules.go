/*
File: block_rules.go
Version: 1.0.0
Description: Expiring redirect rules installed for blocked URLs.
             Rules live for a fixed TTL since attack URLs rotate quickly; the table is also
             capped so a flood of blocks cannot grow it without bound.
*/

package main

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"
)

const (
	ruleIDBase        = 1000
	blockedPagePath   = "/blocked/blocked.html"
	manualBlockReason = "manual"
	manualBlockScore  = 100
)

// BlockRule redirects main-frame navigations to URLFilter onto the blocked page.
type BlockRule struct {
	ID           int         `json:"id"`
	URLFilter    string      `json:"urlFilter"`
	Host         string      `json:"host"`
	ThreatType   ThreatClass `json:"threatType"`
	Score        int         `json:"score"`
	RedirectPath string      `json:"redirectPath"`
	CreatedAt    time.Time   `json:"createdAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

type BlockRuleTable struct {
	mu     sync.Mutex
	rules  map[int]*BlockRule
	nextID int
	ttl    time.Duration
	max    int
	now    func() time.Time
}

func NewBlockRuleTable(ttl time.Duration, maxRules int) *BlockRuleTable {
	return &BlockRuleTable{
		rules:  make(map[int]*BlockRule),
		nextID: ruleIDBase,
		ttl:    ttl,
		max:    maxRules,
		now:    time.Now,
	}
}

// BlockedPageURL builds the redirect target shown instead of a blocked page.
func BlockedPageURL(rawURL string, threat ThreatClass, score int) string {
	return fmt.Sprintf("%s?url=%s&type=%s&score=%d", blockedPagePath, url.QueryEscape(rawURL), threat, score)
}

// Add installs a rule and returns a copy of it. IDs are never reused.
func (t *BlockRuleTable) Add(rawURL string, threat ThreatClass, score int) BlockRule {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.nextID++
	rule := &BlockRule{
		ID:           t.nextID,
		URLFilter:    rawURL,
		Host:         hostnameOf(rawURL),
		ThreatType:   threat,
		Score:        score,
		RedirectPath: BlockedPageURL(rawURL, threat, score),
		CreatedAt:    now,
		ExpiresAt:    now.Add(t.ttl),
	}
	t.rules[rule.ID] = rule

	LogInfo("[RULES] Rule %d created for: %s (Type: %s, Score: %d)", rule.ID, truncate(rawURL, 60), threat, score)
	return *rule
}

// ManualBlock installs a rule on behalf of a user.
func (t *BlockRuleTable) ManualBlock(rawURL, reason string) BlockRule {
	if reason == "" {
		reason = manualBlockReason
	}
	return t.Add(rawURL, ThreatClass(reason), manualBlockScore)
}

func (t *BlockRuleTable) Remove(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rules[id]; !ok {
		return false
	}
	delete(t.rules, id)
	LogDebug("[RULES] Rule %d removed", id)
	return true
}

// IsBlocked reports whether an unexpired rule targets exactly this URL.
func (t *BlockRuleTable) IsBlocked(rawURL string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for _, r := range t.rules {
		if r.URLFilter == rawURL && now.Before(r.ExpiresAt) {
			return true
		}
	}
	return false
}

// HostBlocked reports whether any unexpired rule targets this hostname.
func (t *BlockRuleTable) HostBlocked(host string) bool {
	if host == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for _, r := range t.rules {
		if r.Host == host && now.Before(r.ExpiresAt) {
			return true
		}
	}
	return false
}

// List returns live rules, newest first.
func (t *BlockRuleTable) List() []BlockRule {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make([]BlockRule, 0, len(t.rules))
	for _, r := range t.rules {
		if now.Before(r.ExpiresAt) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (t *BlockRuleTable) Len() int {
	return len(t.List())
}

// Clear removes every rule and returns how many were dropped.
func (t *BlockRuleTable) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.rules)
	t.rules = make(map[int]*BlockRule)
	return n
}

// Sweep drops expired rules and then the oldest ones beyond the cap.
func (t *BlockRuleTable) Sweep() (expired, trimmed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, r := range t.rules {
		if !now.Before(r.ExpiresAt) {
			delete(t.rules, id)
			expired++
		}
	}

	if t.max > 0 && len(t.rules) > t.max {
		ids := make([]int, 0, len(t.rules))
		for id := range t.rules {
			ids = append(ids, id)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ids)))
		for _, id := range ids[t.max:] {
			delete(t.rules, id)
			trimmed++
		}
	}
	return expired, trimmed
}

// StartCleanupRoutine runs Sweep on every tick until ctx is done.
func (t *BlockRuleTable) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, trimmed := t.Sweep()
			if trimmed > 0 {
				LogInfo("[RULES] Auto-cleared %d old rules (limit: %d)", trimmed, t.max)
			}
			if expired > 0 {
				LogDebug("[RULES] Removed %d expired rules", expired)
			}
		}
	}
}
