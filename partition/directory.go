package partition

import (
	"context"
	"sync"

	"github.com/meshfs/meshfs/fs"
	"golang.org/x/sync/singleflight"
)

// Directory is the cluster's live view of its partitions: the full set it
// was configured with, and the subset currently believed alive. Liveness is
// reconciled by Ping calls, coalesced across concurrent callers so a storm
// of failures doesn't turn into a storm of Ping requests against a
// partition that's already down.
type Directory struct {
	mu    sync.RWMutex
	all   map[ID]*Partition
	alive map[ID]bool

	group singleflight.Group
	rec   Recorder
}

// NewDirectory builds a Directory over the given partitions, initially
// considering all of them alive.
func NewDirectory(parts ...*Partition) *Directory {
	d := &Directory{
		all:   make(map[ID]*Partition, len(parts)),
		alive: make(map[ID]bool, len(parts)),
		rec:   noopRecorder{},
	}
	for _, p := range parts {
		d.all[p.ID] = p
		d.alive[p.ID] = true
	}
	return d
}

// SetRecorder attaches a metrics Recorder; the no-op default is used until
// this is called.
func (d *Directory) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	d.mu.Lock()
	d.rec = r
	d.mu.Unlock()
}

// All returns every configured partition, in no particular order.
func (d *Directory) All() []*Partition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Partition, 0, len(d.all))
	for _, p := range d.all {
		out = append(out, p)
	}
	return out
}

// Alive returns the partitions currently believed alive, in no particular
// order.
func (d *Directory) Alive() []*Partition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Partition, 0, len(d.alive))
	for id := range d.alive {
		if p, ok := d.all[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Get looks up a partition by ID regardless of liveness.
func (d *Directory) Get(id ID) (*Partition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.all[id]
	return p, ok
}

// IsAlive reports whether id is currently believed alive.
func (d *Directory) IsAlive(id ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.alive[id]
}

// MarkDead evicts id from the alive set. It is idempotent.
func (d *Directory) MarkDead(id ID) {
	d.mu.Lock()
	wasAlive := d.alive[id]
	delete(d.alive, id)
	d.mu.Unlock()
	if wasAlive {
		fs.Infof(id, "partition marked dead")
		d.rec.PartitionDead(string(id))
	}
}

// MarkAlive restores id to the alive set. It is idempotent.
func (d *Directory) MarkAlive(id ID) {
	d.mu.Lock()
	wasAlive := d.alive[id]
	d.alive[id] = true
	d.mu.Unlock()
	if !wasAlive {
		fs.Infof(id, "partition marked alive")
		d.rec.PartitionAlive(string(id))
	}
}

// MarkIfDead evicts id from the alive set only if err represents a
// transport/unknown failure, never an application error: application
// errors carry domain meaning and must not cost a partition its
// liveness. Non-application errors come back wrapped as a
// *NodeFailedError tagged with id; everything else passes through.
func (d *Directory) MarkIfDead(id ID, err error) error {
	if err == nil {
		return nil
	}
	if fs.IsApplicationError(err) {
		return err
	}
	d.MarkDead(id)
	return &NodeFailedError{ID: id, Cause: err}
}

// NodeFailedError wraps a transport/unknown error observed against a
// partition, the wire-visible NODE_FAILED condition.
type NodeFailedError struct {
	ID    ID
	Cause error
}

func (e *NodeFailedError) Error() string {
	return "partition " + string(e.ID) + " failed: " + e.Cause.Error()
}

func (e *NodeFailedError) Unwrap() error { return e.Cause }

// CheckAllPartitions pings every configured partition and updates
// liveness accordingly. Concurrent calls are coalesced into one Ping
// round via singleflight.
func (d *Directory) CheckAllPartitions(ctx context.Context) {
	d.checkGroup(ctx, "all", d.All())
}

// CheckDeadPartitions pings only the partitions currently believed dead,
// promoting any that answer back to alive. Concurrent calls are
// coalesced the same way as CheckAllPartitions.
func (d *Directory) CheckDeadPartitions(ctx context.Context) {
	d.mu.RLock()
	dead := make([]*Partition, 0, len(d.all)-len(d.alive))
	for id, p := range d.all {
		if !d.alive[id] {
			dead = append(dead, p)
		}
	}
	d.mu.RUnlock()
	d.checkGroup(ctx, "dead", dead)
}

func (d *Directory) checkGroup(ctx context.Context, key string, parts []*Partition) {
	_, _, _ = d.group.Do(key, func() (interface{}, error) {
		var wg sync.WaitGroup
		for _, p := range parts {
			wg.Add(1)
			go func(p *Partition) {
				defer wg.Done()
				if err := p.FS.Ping(ctx); err != nil {
					d.MarkDead(p.ID)
				} else {
					d.MarkAlive(p.ID)
				}
			}(p)
		}
		wg.Wait()
		return nil, nil
	})
}
