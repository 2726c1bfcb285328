package main

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRuleTable(ttl time.Duration, maxRules int) (*BlockRuleTable, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	table := NewBlockRuleTable(ttl, maxRules)
	table.now = clock.Now
	return table, clock
}

func TestBlockRuleTable_IDsStartAfterBase(t *testing.T) {
	table, _ := newTestRuleTable(30*time.Second, 50)

	first := table.Add("http://bad.example/a", ClassPhishing, 91)
	second := table.Add("http://bad.example/b", ClassMalware, 88)

	assert.Equal(t, 1001, first.ID)
	assert.Equal(t, 1002, second.ID)
	assert.Equal(t, "bad.example", first.Host)
}

func TestBlockRuleTable_ExpiresAfterTTL(t *testing.T) {
	table, clock := newTestRuleTable(30*time.Second, 50)
	table.Add("http://bad.example/a", ClassPhishing, 91)

	assert.True(t, table.IsBlocked("http://bad.example/a"))
	assert.True(t, table.HostBlocked("bad.example"))
	assert.False(t, table.IsBlocked("http://bad.example/other"))

	clock.Advance(30 * time.Second)
	assert.False(t, table.IsBlocked("http://bad.example/a"))
	assert.False(t, table.HostBlocked("bad.example"))
	assert.Empty(t, table.List())

	expired, trimmed := table.Sweep()
	assert.Equal(t, 1, expired)
	assert.Zero(t, trimmed)
}

func TestBlockRuleTable_SweepKeepsNewest(t *testing.T) {
	table, _ := newTestRuleTable(time.Minute, 3)
	for i := 0; i < 5; i++ {
		table.Add("http://bad.example/"+strings.Repeat("x", i+1), ClassMalware, 90)
	}

	expired, trimmed := table.Sweep()
	assert.Zero(t, expired)
	assert.Equal(t, 2, trimmed)

	rules := table.List()
	require.Len(t, rules, 3)
	assert.Equal(t, []int{1005, 1004, 1003}, []int{rules[0].ID, rules[1].ID, rules[2].ID})
}

func TestBlockRuleTable_RemoveAndClear(t *testing.T) {
	table, _ := newTestRuleTable(time.Minute, 50)
	r := table.Add("http://bad.example/a", ClassPhishing, 91)
	table.Add("http://bad.example/b", ClassPhishing, 91)

	assert.True(t, table.Remove(r.ID))
	assert.False(t, table.Remove(r.ID))
	assert.Equal(t, 1, table.Len())

	assert.Equal(t, 1, table.Clear())
	assert.Zero(t, table.Len())

	// IDs keep counting after a clear.
	assert.Equal(t, 1003, table.Add("http://bad.example/c", ClassPhishing, 91).ID)
}

func TestBlockRuleTable_ManualBlock(t *testing.T) {
	table, _ := newTestRuleTable(time.Minute, 50)

	r := table.ManualBlock("http://annoying.example/", "")
	assert.Equal(t, ThreatClass(manualBlockReason), r.ThreatType)
	assert.Equal(t, manualBlockScore, r.Score)

	r = table.ManualBlock("http://annoying.example/2", "scam")
	assert.Equal(t, ThreatClass("scam"), r.ThreatType)
}

func TestBlockedPageURL(t *testing.T) {
	got := BlockedPageURL("http://bad.example/login?a=1&b=2", ClassPhishing, 92)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, blockedPagePath, u.Path)
	assert.Equal(t, "http://bad.example/login?a=1&b=2", u.Query().Get("url"))
	assert.Equal(t, "phishing", u.Query().Get("type"))
	assert.Equal(t, "92", u.Query().Get("score"))
}
