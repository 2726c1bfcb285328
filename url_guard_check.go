/*
File: url_guard_check.go
Version: 1.0.0
Description: Navigation guard. Turns verdicts into block rules, history entries and
             events, with a verdict cache and request coalescing in front of the classifier.
*/

package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	errModelLoading = "Model loading"
	denylistReason  = "denylist"
)

// Decision is the outcome of a navigation check.
type Decision struct {
	URL     string      `json:"url"`
	Action  GuardAction `json:"action"`
	Skipped string      `json:"skipped,omitempty"`
	Verdict *Verdict    `json:"verdict,omitempty"`
	Rule    *BlockRule  `json:"rule,omitempty"`
}

// LinkResult is one entry of a page link scan.
type LinkResult struct {
	URL     string  `json:"url"`
	Safe    bool    `json:"safe"`
	Verdict Verdict `json:"verdict"`
}

type Checker struct {
	handle  *ClassifierHandle
	cache   *VerdictCache
	flight  *ShardedGroup
	rules   *BlockRuleTable
	history *BlockHistory
	events  EventPublisher
	lists   *DomainLists
	cfg     GuardConfig
}

// NewChecker wires the guard. events and lists may be nil.
func NewChecker(handle *ClassifierHandle, rules *BlockRuleTable, history *BlockHistory, events EventPublisher, lists *DomainLists, cfg GuardConfig) *Checker {
	cfg.ScanConcurrency = max(cfg.ScanConcurrency, 1)
	return &Checker{
		handle:  handle,
		cache:   NewVerdictCache(cfg.CacheSize),
		flight:  NewShardedGroup(),
		rules:   rules,
		history: history,
		events:  events,
		lists:   lists,
		cfg:     cfg,
	}
}

// classify returns the verdict for a URL, served from cache when possible.
// Not-ready verdicts are never cached.
func (ch *Checker) classify(rawURL string) Verdict {
	if v, ok := ch.cache.Get(rawURL); ok {
		return v
	}
	res, _, _ := ch.flight.Do(rawURL, func() (any, error) {
		c := ch.handle.Current()
		v := c.Predict(rawURL)
		if c.IsReady() {
			ch.cache.Add(rawURL, v)
		}
		return v, nil
	})
	return res.(Verdict)
}

// CheckNavigation scores a main-frame navigation and acts on it.
func (ch *Checker) CheckNavigation(ctx context.Context, rawURL string) Decision {
	d := Decision{URL: rawURL, Action: ActionPass}

	host := hostnameOf(rawURL)
	switch {
	case !isNavigable(rawURL, ch.cfg.MinURLLength):
		d.Skipped = "not navigable"
		return d
	case ch.lists.Allowed(host):
		d.Skipped = "allowlisted"
		return d
	case ch.lists.Denied(host):
		rule := ch.Block(rawURL, denylistReason)
		d.Action = ActionBlock
		d.Rule = &rule
		LogWarn("[URL-GUARD] BLOCKED: %s (denylisted host %s)", truncate(rawURL, 80), host)
		return d
	case IsKnownSafeDomain(rawURL):
		d.Skipped = "known safe domain"
		return d
	case !ch.handle.Current().IsReady():
		d.Skipped = "model not ready"
		return d
	}
	if err := ctx.Err(); err != nil {
		d.Skipped = err.Error()
		return d
	}

	v := ch.classify(rawURL)
	d.Verdict = &v
	d.Action = DecideAction(v, ch.cfg.BlockThreshold, ch.cfg.WarnThreshold)

	switch d.Action {
	case ActionBlock:
		rule := ch.block(rawURL, v)
		d.Rule = &rule
		LogWarn("[URL-GUARD] BLOCKED: %s (%s, %.1f%%)", truncate(rawURL, 80), v.ThreatType, v.Confidence*100)
	case ActionWarn:
		ch.publish(EventShowWarning, rawURL, v, 0)
		LogInfo("[URL-GUARD] Warning: %s (%s, %.1f%%)", truncate(rawURL, 80), v.ThreatType, v.Confidence*100)
	}
	return d
}

// CheckURL answers a link or popup check. Unlike navigation it blocks on any malicious
// class once the confidence clears the block threshold.
func (ch *Checker) CheckURL(rawURL string) (Verdict, *BlockRule) {
	if !ch.handle.Current().IsReady() {
		return Verdict{Error: errModelLoading}, nil
	}
	v := ch.classify(rawURL)
	if v.Error != "" {
		return v, nil
	}
	if v.IsMalicious && v.Confidence > ch.cfg.BlockThreshold {
		rule := ch.block(rawURL, v)
		return v, &rule
	}
	return v, nil
}

// ScanLinks checks page links in parallel. A link is safe unless its verdict is malicious.
func (ch *Checker) ScanLinks(ctx context.Context, urls []string) ([]LinkResult, error) {
	results := make([]LinkResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ch.cfg.ScanConcurrency)

	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, _ := ch.CheckURL(u)
			results[i] = LinkResult{URL: u, Safe: !v.IsMalicious, Verdict: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("link scan aborted: %w", err)
	}
	return results, nil
}

// Block installs a manual rule for the URL and records it.
func (ch *Checker) Block(rawURL, reason string) BlockRule {
	rule := ch.rules.ManualBlock(rawURL, reason)
	v := Verdict{
		IsMalicious:    true,
		PredictedClass: rule.ThreatType,
		ThreatType:     rule.ThreatType,
		Confidence:     1,
		Score:          rule.Score,
		Timestamp:      time.Now().UTC(),
	}
	ch.history.Record(rawURL, v)
	ch.publish(EventBlocked, rawURL, v, rule.ID)
	return rule
}

func (ch *Checker) block(rawURL string, v Verdict) BlockRule {
	rule := ch.rules.Add(rawURL, v.ThreatType, v.Score)
	ch.history.Record(rawURL, v)
	ch.publish(EventBlocked, rawURL, v, rule.ID)
	return rule
}

func (ch *Checker) publish(action, rawURL string, v Verdict, ruleID int) {
	if ch.events == nil {
		return
	}
	ch.events.Publish(GuardEvent{
		Action:     action,
		URL:        rawURL,
		Domain:     registrableDomain(hostnameOf(rawURL)),
		ThreatType: v.ThreatType,
		Score:      v.Score,
		Confidence: v.Confidence,
		RuleID:     ruleID,
	})
}

// Stats summarizes the guard for dashboards.
type Stats struct {
	BlockedCount int    `json:"blockedCount"`
	ActiveRules  int    `json:"activeRules"`
	ModelStatus  string `json:"modelStatus"`
	ModelType    string `json:"modelType"`
	CachedURLs   int    `json:"cachedUrls"`
}

func (ch *Checker) Stats() Stats {
	status := "loading"
	if ch.handle.Current().IsReady() {
		status = "loaded"
	}
	return Stats{
		BlockedCount: ch.history.Len(),
		ActiveRules:  ch.rules.Len(),
		ModelStatus:  status,
		ModelType:    modelTypeTag,
		CachedURLs:   ch.cache.Len(),
	}
}

// ClearRules drops every block rule and the cached verdicts.
func (ch *Checker) ClearRules() int {
	n := ch.rules.Clear()
	ch.cache.Flush()
	return n
}
