// Package idgen hands out link ids. Ids are simplified Snowflake ids: unique
// 64-bit values that are roughly time-sortable, so inserts do not contend on
// a database sequence.
// https://en.wikipedia.org/wiki/Snowflake_ID
package idgen

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	customEpoch int64 = 1704067200000 // Jan 1, 2024
	nodeIDBits  uint  = 10
	seqBits     uint  = 12
	MaxNodeID   int64 = -1 ^ (-1 << nodeIDBits)
	maxSeq      int64 = -1 ^ (-1 << seqBits)
)

// Source is anything that can produce a fresh id.
type Source interface {
	NextID(ctx context.Context) (uint64, error)
}

type Generator struct {
	mu        sync.Mutex
	lastStamp int64
	nodeID    int64
	seq       int64
	now       func() int64
}

func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}
	return &Generator{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Generator) NextID(_ context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if ts < g.lastStamp {
		// clock went backwards
		ts = g.wait()
	}
	if ts == g.lastStamp {
		g.seq = (g.seq + 1) & maxSeq
		if g.seq == 0 {
			ts = g.wait()
		}
	} else {
		g.seq = 0
	}
	g.lastStamp = ts

	id := (uint64(ts-customEpoch) << (nodeIDBits + seqBits)) |
		(uint64(g.nodeID) << seqBits) |
		uint64(g.seq)
	return id, nil
}

func (g *Generator) wait() int64 {
	ts := g.now()
	for ts <= g.lastStamp {
		time.Sleep(time.Millisecond)
		ts = g.now()
	}
	return ts
}
