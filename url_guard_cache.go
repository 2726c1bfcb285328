/*
File: url_guard_cache.go
Version: 1.0.0
Description: Thread-safe sharded LRU cache for URL verdicts.
*/

package main

import (
	"container/list"
	"hash/maphash"
	"sync"
)

const verdictCacheShards = 64

type verdictCacheEntry struct {
	key     string
	verdict Verdict
}

type verdictCacheShard struct {
	sync.Mutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
}

type VerdictCache struct {
	shards [verdictCacheShards]*verdictCacheShard
	seed   maphash.Seed
}

func NewVerdictCache(capacity int) *VerdictCache {
	c := &VerdictCache{seed: maphash.MakeSeed()}
	shardCap := max(capacity/verdictCacheShards, 1)
	for i := range c.shards {
		c.shards[i] = &verdictCacheShard{
			items:    make(map[string]*list.Element),
			lruList:  list.New(),
			capacity: shardCap,
		}
	}
	return c
}

func (c *VerdictCache) getShard(key string) *verdictCacheShard {
	return c.shards[maphash.String(c.seed, key)&(verdictCacheShards-1)]
}

func (c *VerdictCache) Get(key string) (Verdict, bool) {
	shard := c.getShard(key)
	shard.Lock()
	defer shard.Unlock()
	if el, ok := shard.items[key]; ok {
		shard.lruList.MoveToFront(el)
		return el.Value.(*verdictCacheEntry).verdict, true
	}
	return Verdict{}, false
}

func (c *VerdictCache) Add(key string, v Verdict) {
	shard := c.getShard(key)
	shard.Lock()
	defer shard.Unlock()

	if el, found := shard.items[key]; found {
		shard.lruList.MoveToFront(el)
		el.Value.(*verdictCacheEntry).verdict = v
		return
	}

	if shard.lruList.Len() >= shard.capacity {
		if oldest := shard.lruList.Back(); oldest != nil {
			shard.lruList.Remove(oldest)
			delete(shard.items, oldest.Value.(*verdictCacheEntry).key)
		}
	}
	shard.items[key] = shard.lruList.PushFront(&verdictCacheEntry{key: key, verdict: v})
}

func (c *VerdictCache) Len() int {
	n := 0
	for _, shard := range c.shards {
		shard.Lock()
		n += shard.lruList.Len()
		shard.Unlock()
	}
	return n
}

// Flush drops everything, e.g. after a model swap.
func (c *VerdictCache) Flush() {
	for _, shard := range c.shards {
		shard.Lock()
		shard.items = make(map[string]*list.Element)
		shard.lruList.Init()
		shard.Unlock()
	}
}
