package partition

import (
	"testing"

	"github.com/meshfs/meshfs/internal/memfs"
)

func parts(ids ...string) []*Partition {
	out := make([]*Partition, len(ids))
	for i, id := range ids {
		out[i] = &Partition{ID: ID(id), FS: memfs.New()}
	}
	return out
}

func TestRendezvousDeterministic(t *testing.T) {
	r := NewRendezvous()
	alive := parts("a", "b", "c", "d", "e")
	first := r.Select("myfile", alive, 3)
	second := r.Select("myfile", alive, 3)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 selections, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("Select must be deterministic for a fixed (name, alive-set): %v != %v", first, second)
		}
	}
}

func TestRendezvousMinimalReshuffleOnRemoval(t *testing.T) {
	r := NewRendezvous()
	alive := parts("a", "b", "c", "d", "e")
	before := r.Select("myfile", alive, 5)

	// Remove the lowest-preference id; everyone else's relative order must
	// be unchanged.
	removed := before[len(before)-1].ID
	reduced := make([]*Partition, 0, len(alive)-1)
	for _, p := range alive {
		if p.ID != removed {
			reduced = append(reduced, p)
		}
	}
	after := r.Select("myfile", reduced, len(reduced))

	if len(after) != len(before)-1 {
		t.Fatalf("expected %d survivors, got %d", len(before)-1, len(after))
	}
	for i, p := range after {
		if p.ID != before[i].ID {
			t.Fatalf("removing the least-preferred id must not reorder the rest: before=%v after=%v", before, after)
		}
	}
}

func TestRendezvousNeverExceedsAliveSet(t *testing.T) {
	r := NewRendezvous()
	alive := parts("a", "b")
	got := r.Select("x", alive, 5)
	if len(got) != 2 {
		t.Fatalf("Select must clamp n to len(alive), got %d entries", len(got))
	}
}

func TestRendezvousNoDuplicateIDs(t *testing.T) {
	r := NewRendezvous()
	alive := parts("a", "b", "c")
	got := r.Select("x", alive, 3)
	seen := map[ID]bool{}
	for _, p := range got {
		if seen[p.ID] {
			t.Fatalf("Select returned duplicate id %v", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestRendezvousRankOf(t *testing.T) {
	r := Rendezvous{}
	alive := parts("a", "b", "c")
	ranked := r.Select("x", alive, 3)
	for i, p := range ranked {
		if got := r.RankOf("x", alive, p.ID); got != i {
			t.Errorf("RankOf(%v) = %d, want %d", p.ID, got, i)
		}
	}
	if got := r.RankOf("x", alive, "nonexistent"); got != -1 {
		t.Errorf("RankOf for an absent id = %d, want -1", got)
	}
}
