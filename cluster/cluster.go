// Package cluster implements the composition layer: one logical fs.FS
// fanned out across many partition.Partition backends, replicating on
// write, fanning in on read, and tracking partition liveness.
package cluster

import (
	"errors"
	"fmt"

	"github.com/meshfs/meshfs/partition"
)

// Config holds the cluster's replication thresholds.
//
// Invariants: 0 <= DeadThreshold < total partition count,
// 0 < UploadMin <= UploadMax <= total partition count.
type Config struct {
	DeadThreshold uint32
	UploadMin     uint32
	UploadMax     uint32
}

// SetReplicationCount sets DeadThreshold = r-1 and
// UploadMin = UploadMax = r, the usual "replicate everything r ways"
// configuration.
func (c *Config) SetReplicationCount(r uint32) {
	c.DeadThreshold = r - 1
	c.UploadMin = r
	c.UploadMax = r
}

// Validate checks the Config invariants against the cluster's total
// partition count.
func (c Config) Validate(total int) error {
	if int(c.DeadThreshold) >= total {
		return fmt.Errorf("dead threshold %d must be below the partition count %d", c.DeadThreshold, total)
	}
	if c.UploadMin == 0 {
		return fmt.Errorf("upload min must be positive")
	}
	if c.UploadMin > c.UploadMax || int(c.UploadMax) > total {
		return fmt.Errorf("upload bounds %d..%d invalid for %d partitions", c.UploadMin, c.UploadMax, total)
	}
	return nil
}

// ErrClusterDegraded is returned when the dead partition count exceeds
// Config.DeadThreshold and an operation fails fast rather than attempt a
// partial write or read.
var ErrClusterDegraded = errors.New("CLUSTER_DEGRADED")

// ErrNotEnoughUploadTargets is returned when fewer than Config.UploadMin
// partitions could be opened (or survived) for an upload.
var ErrNotEnoughUploadTargets = errors.New("NOT_ENOUGH_UPLOAD_TARGETS")

// ErrNoReplicasAvailable is returned when a download's fan-in finds zero
// partitions willing to supply the file and the failures were not a
// uniform FILE_NOT_FOUND: at least one probe failed with a
// transport/unknown error, or no partition was alive.
var ErrNoReplicasAvailable = errors.New("NO_REPLICAS_AVAILABLE")

// Composer implements fs.FS by fanning operations out across a
// partition.Directory using a partition.Selector to choose candidates per
// name.
type Composer struct {
	dir      *partition.Directory
	selector partition.Selector
	cfg      Config
}

// New builds a Composer. If selector is nil, partition.NewRendezvous() is
// used.
func New(dir *partition.Directory, selector partition.Selector, cfg Config) *Composer {
	if selector == nil {
		selector = partition.NewRendezvous()
	}
	return &Composer{dir: dir, selector: selector, cfg: cfg}
}

// checkDegraded fails fast with ErrClusterDegraded once the dead count
// exceeds DeadThreshold; it gates every operation so a mostly-dead
// cluster refuses service instead of committing under-replicated writes.
func (c *Composer) checkDegraded() error {
	all := c.dir.All()
	alive := c.dir.Alive()
	dead := len(all) - len(alive)
	if dead > int(c.cfg.DeadThreshold) {
		return fmt.Errorf("%w: %d dead partitions exceeds threshold %d", ErrClusterDegraded, dead, c.cfg.DeadThreshold)
	}
	return nil
}

// candidates returns up to n alive partitions for name, in the selector's
// preference order.
func (c *Composer) candidates(name string, n int) []*partition.Partition {
	return c.selector.Select(name, c.dir.Alive(), n)
}
