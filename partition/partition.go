// Package partition tracks the set of backing filesystems the cluster
// composer fans files out across, along with their liveness, and chooses
// which subset of them a given name should live on.
package partition

import (
	"github.com/meshfs/meshfs/fs"
)

// ID names one partition. Partitions are compared by value, so any
// comparable identifier (a URL, a config section name, a dial address)
// works.
type ID string

// Partition pairs an ID with the fs.FS that backs it.
type Partition struct {
	ID ID
	FS fs.FS
}
