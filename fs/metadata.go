package fs

// Metadata describes one file: its size in bytes and the timestamp of its
// last write. Comparison order is larger timestamp wins; ties broken by
// larger size.
type Metadata struct {
	Size    uint64
	ModTime int64
}

// Compare returns a positive number if m is "newer" than other by the
// (timestamp, size) order, negative if older, zero if equal under that
// order.
func (m Metadata) Compare(other Metadata) int {
	if m.ModTime != other.ModTime {
		if m.ModTime > other.ModTime {
			return 1
		}
		return -1
	}
	if m.Size != other.Size {
		if m.Size > other.Size {
			return 1
		}
		return -1
	}
	return 0
}

// newer reports whether m should replace other under the flatten rule.
func (m Metadata) newer(other Metadata) bool {
	return m.Compare(other) > 0
}

// Flatten reduces a set of per-partition listings of the same names down to
// one map, keeping for each name the maximum Metadata per Compare. It is
// used by the cluster composer's broadcast List and, in principle, by any
// other composition layer that fans a name out across multiple sources.
func Flatten(listings ...map[string]Metadata) map[string]Metadata {
	out := make(map[string]Metadata)
	for _, listing := range listings {
		for name, md := range listing {
			if existing, ok := out[name]; !ok || md.newer(existing) {
				out[name] = md
			}
		}
	}
	return out
}

// FlattenInfo reduces a set of per-partition info lookups for a single name
// into the max Metadata, or (Metadata{}, false) if none had it.
func FlattenInfo(infos ...*Metadata) (Metadata, bool) {
	var best Metadata
	found := false
	for _, info := range infos {
		if info == nil {
			continue
		}
		if !found || info.newer(best) {
			best = *info
			found = true
		}
	}
	return best, found
}
