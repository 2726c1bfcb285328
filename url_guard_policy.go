/*
File: url_guard_policy.go
Version: 1.0.0
Description: Post-argmax override rules ("common sense rules") and the block/warn decision.
             Override rules may only move a verdict toward benign or suspicious.
*/

package main

import (
	"fmt"
	"math"
	"strings"
)

// policyOutcome is the verdict core produced by applyOverrides.
type policyOutcome struct {
	Class        ThreatClass
	Confidence   float64
	IsMalicious  bool
	IsSuspicious bool
	Score        int
}

// applyOverrides runs the override rules in order. Every rule tests the argmax confidence,
// not the value left behind by an earlier rule.
func applyOverrides(rawURL string, raw FeatureVector, predicted ThreatClass, confidence float64) policyOutcome {
	isMalicious := predicted != ClassBenign
	finalClass := predicted
	finalConf := confidence

	// Short URLs are almost always fine.
	if raw[FeatURLLength] < shortURLLength && confidence < shortURLMaxConf {
		isMalicious = false
		finalClass = ClassBenign
		finalConf = math.Max(shortURLFloor, confidence-shortURLPenalty)
	}

	// A single strong indicator is not enough to call it.
	if strongIndicatorCount(raw) == 1 && confidence < weakSignalMaxConf {
		isMalicious = false
		finalClass = ClassSuspicious
		finalConf = confidence * weakSignalFactor
	}

	if IsKnownSafeDomain(rawURL) && confidence < safeDomainMaxConf {
		isMalicious = false
		finalClass = ClassBenign
		finalConf = safeDomainConfidence
	}

	return policyOutcome{
		Class:        finalClass,
		Confidence:   finalConf,
		IsMalicious:  isMalicious,
		IsSuspicious: finalClass == ClassSuspicious || (confidence > suspiciousLow && confidence < suspiciousHigh),
		Score:        int(math.Round(finalConf * 100)),
	}
}

func strongIndicatorCount(raw FeatureVector) int {
	count := 0
	for _, idx := range strongIndicators {
		if raw[idx] > 0 {
			count++
		}
	}
	return count
}

// IsKnownSafeDomain reports whether the URL's hostname matches a trusted pattern.
// Unparsable URLs are never safe.
func IsKnownSafeDomain(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok {
		return false
	}
	host := urlHostname(u)
	for _, re := range safeDomainRegexps {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// --- Block / Warn Decision ---

type GuardAction int

const (
	ActionPass GuardAction = iota
	ActionWarn
	ActionBlock
)

func (a GuardAction) String() string {
	switch a {
	case ActionPass:
		return "allow"
	case ActionWarn:
		return "warn"
	case ActionBlock:
		return "block"
	default:
		return "unknown"
	}
}

func (a GuardAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *GuardAction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "allow":
		*a = ActionPass
	case "warn":
		*a = ActionWarn
	case "block":
		*a = ActionBlock
	default:
		return fmt.Errorf("unknown guard action %q", text)
	}
	return nil
}

// DecideAction applies the navigation thresholds to a verdict. Only phishing and malware
// verdicts above blockThreshold block; the lower warn bound signals without blocking.
func DecideAction(v Verdict, blockThreshold, warnThreshold float64) GuardAction {
	if v.Error != "" {
		return ActionPass
	}
	if v.IsMalicious && v.Confidence > blockThreshold &&
		(v.ThreatType == ClassPhishing || v.ThreatType == ClassMalware) {
		return ActionBlock
	}
	if v.IsSuspicious || v.Confidence > warnThreshold {
		return ActionWarn
	}
	return ActionPass
}

// isNavigable filters out URLs the navigation guard never scores.
func isNavigable(rawURL string, minLength int) bool {
	return rawURL != "" && textLength(rawURL) >= minLength && strings.HasPrefix(rawURL, "http")
}
