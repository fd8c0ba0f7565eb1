package partition

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Rendezvous is a highest-random-weight (HRW) Selector: each (name,
// partition) pair is scored by hashing their concatenation, and the
// top-n partitions by score are chosen. When a partition joins or
// leaves, only the names that hashed nearest to it move, never the whole
// keyspace, which matters here because the eligible set changes every
// time a partition dies or recovers.
type Rendezvous struct{}

// NewRendezvous builds a Rendezvous selector.
func NewRendezvous() *Rendezvous { return &Rendezvous{} }

type scoredPartition struct {
	score uint64
	p     *Partition
}

// Select implements Selector.
func (Rendezvous) Select(name string, alive []*Partition, n int) []*Partition {
	if n > len(alive) {
		n = len(alive)
	}
	if n <= 0 {
		return nil
	}
	scored := make([]scoredPartition, len(alive))
	for i, p := range alive {
		scored[i] = scoredPartition{score: rendezvousScore(name, p.ID), p: p}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		// Break ties deterministically so Select is stable even if two
		// partitions somehow hash identically for this name.
		return scored[i].p.ID < scored[j].p.ID
	})
	out := make([]*Partition, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].p
	}
	return out
}

// rendezvousScore mixes name and id through xxhash the way HRW requires:
// a hash that is a pure, order-independent function of the pair, so every
// caller computing Select for the same (name, alive-set) lands on the same
// top-n regardless of iteration order.
func rendezvousScore(name string, id ID) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(id))
	return h.Sum64()
}

// RankOf returns the 0-based rank (0 = most preferred) of id for name among
// alive, or -1 if id is not present in alive. It computes the full Select
// ranking to do so; the cluster composer ranks through Select directly
// and does not call RankOf.
func (r Rendezvous) RankOf(name string, alive []*Partition, id ID) int {
	ranked := r.Select(name, alive, len(alive))
	for i, p := range ranked {
		if p.ID == id {
			return i
		}
	}
	return -1
}
