/*
File: sharded_singleflight.go
Version: 2.0.0
Description: A sharded wrapper around singleflight.Group to reduce mutex contention when
             many link checks arrive at once.
*/

package main

import (
	"hash/maphash"

	"golang.org/x/sync/singleflight"
)

const shardedFlightCount = 64

type ShardedGroup struct {
	shards []*singleflight.Group
	seed   maphash.Seed
}

func NewShardedGroup() *ShardedGroup {
	sg := &ShardedGroup{
		shards: make([]*singleflight.Group, shardedFlightCount),
		seed:   maphash.MakeSeed(),
	}
	for i := range sg.shards {
		sg.shards[i] = &singleflight.Group{}
	}
	return sg
}

func (g *ShardedGroup) getShard(key string) *singleflight.Group {
	return g.shards[maphash.String(g.seed, key)&(shardedFlightCount-1)]
}

func (g *ShardedGroup) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	return g.getShard(key).Do(key, fn)
}
