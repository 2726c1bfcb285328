package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides_RulesTestArgmaxConfidence(t *testing.T) {
	// Short URL with one strong indicator: the weak-signal rule sees the argmax
	// confidence (0.6), not the value already lowered by the short-URL rule.
	var raw FeatureVector
	raw[FeatURLLength] = 15
	raw[FeatIPExist] = 1

	out := applyOverrides("http://1.2.3.4/", raw, ClassMalware, 0.6)
	assert.Equal(t, ClassSuspicious, out.Class)
	assert.InDelta(t, 0.42, out.Confidence, 1e-12)
	assert.False(t, out.IsMalicious)
	assert.True(t, out.IsSuspicious)
	assert.Equal(t, 42, out.Score)
}

func TestApplyOverrides_NoRuleFires(t *testing.T) {
	var raw FeatureVector
	raw[FeatURLLength] = 120
	raw[FeatIPExist] = 1
	raw[FeatSuspiciousWords] = 1

	out := applyOverrides("http://1.2.3.4/login", raw, ClassPhishing, 0.9)
	assert.Equal(t, ClassPhishing, out.Class)
	assert.Equal(t, 0.9, out.Confidence)
	assert.True(t, out.IsMalicious)
	assert.False(t, out.IsSuspicious)
	assert.Equal(t, 90, out.Score)
}

func TestApplyOverrides_ShortURLFloor(t *testing.T) {
	var raw FeatureVector
	raw[FeatURLLength] = 12

	out := applyOverrides("http://ab.cd", raw, ClassDefacement, 0.3)
	assert.Equal(t, ClassBenign, out.Class)
	assert.Equal(t, shortURLFloor, out.Confidence)
	assert.False(t, out.IsMalicious)
}

func TestIsKnownSafeDomain(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.github.com/org/repo", true},
		{"https://en.wikipedia.org/wiki/Go", true},
		{"https://docs.microsoft.com/x", true},
		// Patterns need a label before the brand.
		{"https://github.com/org/repo", false},
		{"https://google.evil.example", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKnownSafeDomain(tt.url))
		})
	}
}

func TestDecideAction(t *testing.T) {
	tests := []struct {
		name string
		v    Verdict
		want GuardAction
	}{
		{"phishing above threshold", Verdict{IsMalicious: true, ThreatType: ClassPhishing, Confidence: 0.9}, ActionBlock},
		{"malware above threshold", Verdict{IsMalicious: true, ThreatType: ClassMalware, Confidence: 0.86}, ActionBlock},
		{"defacement never blocks", Verdict{IsMalicious: true, ThreatType: ClassDefacement, Confidence: 0.95}, ActionWarn},
		{"at threshold warns", Verdict{IsMalicious: true, ThreatType: ClassPhishing, Confidence: 0.85}, ActionWarn},
		{"suspicious warns", Verdict{IsSuspicious: true, ThreatType: ClassSuspicious, Confidence: 0.3}, ActionWarn},
		{"low confidence passes", Verdict{ThreatType: ClassBenign, Confidence: 0.45}, ActionPass},
		{"error passes", Verdict{Error: errModelNotReady}, ActionPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideAction(tt.v, 0.85, 0.5))
		})
	}
}

func TestGuardActionJSON(t *testing.T) {
	data, err := json.Marshal(map[string]GuardAction{"a": ActionBlock, "b": ActionPass})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"block","b":"allow"}`, string(data))
}

func TestIsNavigable(t *testing.T) {
	assert.True(t, isNavigable("https://example.com", 10))
	assert.False(t, isNavigable("", 10))
	assert.False(t, isNavigable("http://a", 10))
	assert.False(t, isNavigable("ftp://example.com/file", 10))
	assert.False(t, isNavigable("chrome://settings/privacy", 10))
}
