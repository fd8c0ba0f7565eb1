package partition

// Selector picks, for a given file name and a replication count, which
// partitions should hold (or be consulted for) that name. Implementations
// must be deterministic in the set of alive partitions: the same name and
// the same alive set always yields the same selection, which is what lets
// the cluster find a file again after a partition flaps without any
// directory/manifest of its own.
type Selector interface {
	// Select returns up to n partitions, in preference order, chosen from
	// alive for name. It never returns the same ID twice, and never
	// returns more entries than len(alive).
	Select(name string, alive []*Partition, n int) []*Partition
}
