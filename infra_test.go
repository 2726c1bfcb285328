package main

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Verdict cache ---

func TestVerdictCache_AddGet(t *testing.T) {
	c := NewVerdictCache(1024)
	v := Verdict{PredictedClass: ClassPhishing, Confidence: 0.9}

	_, ok := c.Get("http://a.example")
	assert.False(t, ok)

	c.Add("http://a.example", v)
	got, ok := c.Get("http://a.example")
	require.True(t, ok)
	assert.Equal(t, v, got)
	assert.Equal(t, 1, c.Len())

	c.Flush()
	assert.Zero(t, c.Len())
}

func TestVerdictCache_Bounded(t *testing.T) {
	c := NewVerdictCache(0)
	for i := 0; i < 1000; i++ {
		c.Add(fmt.Sprintf("http://host%d.example", i), Verdict{})
	}
	assert.LessOrEqual(t, c.Len(), verdictCacheShards)
}

// --- Client ACL ---

func TestClientACL(t *testing.T) {
	nets, err := parseCIDRs([]string{"10.0.0.0/8", "192.0.2.7", "2001:db8::/32"})
	require.NoError(t, err)
	acl := NewClientACL(nets)

	assert.True(t, acl.Allowed(net.ParseIP("10.1.2.3")))
	assert.True(t, acl.Allowed(net.ParseIP("192.0.2.7")))
	assert.True(t, acl.Allowed(net.ParseIP("2001:db8::1")))
	assert.False(t, acl.Allowed(net.ParseIP("192.0.2.8")))
	assert.False(t, acl.Allowed(nil))

	empty := NewClientACL(nil)
	assert.True(t, empty.Allowed(net.ParseIP("203.0.113.1")))
	assert.True(t, empty.Allowed(nil))
}

// --- Limiter ---

func TestLimiter_Disabled(t *testing.T) {
	lm := NewLimiter(RateLimitConfig{Enabled: false, ClientQPS: 1, ClientBurst: 1})
	for i := 0; i < 10; i++ {
		action, _, _ := lm.Check(net.ParseIP("192.0.2.1"))
		assert.Equal(t, LimitAllow, action)
	}
}

func TestLimiter_PacesThenDrops(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ip := net.ParseIP("192.0.2.1")

	lm := NewLimiter(RateLimitConfig{Enabled: true, ClientQPS: 4, ClientBurst: 1})
	lm.now = func() time.Time { return now }

	action, _, _ := lm.Check(ip)
	assert.Equal(t, LimitAllow, action)

	action, delay, reason := lm.Check(ip)
	assert.Equal(t, LimitDelay, action)
	assert.Equal(t, 250*time.Millisecond, delay)
	assert.Contains(t, reason, "Pacing")

	lm.Check(ip)
	action, _, _ = lm.Check(ip)
	assert.Equal(t, LimitDrop, action, "third queued token needs 750ms")

	other, _, _ := lm.Check(net.ParseIP("192.0.2.2"))
	assert.Equal(t, LimitAllow, other)
}

func TestLimiter_CleanupRemovesIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lm := NewLimiter(RateLimitConfig{Enabled: true, ClientQPS: 10, ClientBurst: 10, parsedClientExpiration: time.Minute})
	lm.now = func() time.Time { return now }

	lm.Check(net.ParseIP("192.0.2.1"))
	lm.Check(net.ParseIP("192.0.2.2"))
	assert.Zero(t, lm.cleanup())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, lm.cleanup())
}

// --- Helpers ---

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	// Never splits a multi-byte rune.
	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, strings.Repeat("x", 100), truncate(strings.Repeat("x", 150), 100))
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", registrableDomain("www.example.com"))
	assert.Equal(t, "example.co.uk", registrableDomain("a.b.example.co.uk."))
	assert.Equal(t, "192.168.1.1", registrableDomain("192.168.1.1"))
	assert.Equal(t, "[2001:db8::1]", registrableDomain("[2001:db8::1]"))
	assert.Equal(t, "", registrableDomain(""))
}

func TestIsPublicSuffix(t *testing.T) {
	assert.True(t, isPublicSuffix("com"))
	assert.True(t, isPublicSuffix("co.uk."))
	assert.False(t, isPublicSuffix("example.com"))
}

func TestParseHostIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", parseHostIP("192.0.2.1:5353").String())
	assert.Equal(t, "2001:db8::1", parseHostIP("[2001:db8::1]:443").String())
	assert.Equal(t, "192.0.2.1", parseHostIP("192.0.2.1").String())
	assert.Nil(t, parseHostIP("nonsense"))
}
