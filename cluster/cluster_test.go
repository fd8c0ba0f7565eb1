package cluster

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/internal/memfs"
	"github.com/meshfs/meshfs/partition"
)

func newThree(t *testing.T) (*partition.Directory, *memfs.FS, *memfs.FS, *memfs.FS) {
	t.Helper()
	a, b, c := memfs.New(), memfs.New(), memfs.New()
	dir := partition.NewDirectory(
		&partition.Partition{ID: "a", FS: a},
		&partition.Partition{ID: "b", FS: b},
		&partition.Partition{ID: "c", FS: c},
	)
	return dir, a, b, c
}

func upload(t *testing.T, c *Composer, name, data string) error {
	t.Helper()
	w, err := c.Upload(context.Background(), name)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(data)); err != nil {
		_ = w.CloseWithError(err)
		return err
	}
	return w.CloseWithError(nil)
}

func download(t *testing.T, c *Composer, name string) (string, error) {
	t.Helper()
	sup, err := c.Download(context.Background(), name, 0, ^uint64(0))
	if err != nil {
		return "", err
	}
	defer sup.Close()
	got, err := io.ReadAll(sup)
	return string(got), err
}

// TestUploadReplicatesToUploadMaxAndSurvivesOneDown: a 3-partition cluster
// with UploadMin=2 and UploadMax=3 and one partition down before the
// upload begins must still reach quorum using the two survivors.
func TestUploadReplicatesToUploadMaxAndSurvivesOneDown(t *testing.T) {
	dir, _, _, c := newThree(t)
	c.Down = true // one partition unreachable before the upload starts
	cfg := Config{DeadThreshold: 1, UploadMin: 2, UploadMax: 3}
	comp := New(dir, nil, cfg)

	if err := upload(t, comp, "f", "hello"); err != nil {
		t.Fatalf("upload must succeed with 2 of 3 partitions alive and UploadMin=2, got %v", err)
	}
	if dir.IsAlive("c") {
		t.Error("a partition that failed to open for upload must be marked dead")
	}

	got, err := download(t, comp, "f")
	if err != nil || got != "hello" {
		t.Fatalf("download after upload = %q, %v, want %q, nil", got, err, "hello")
	}
}

// TestUploadFailsBelowUploadMin: with both partitions the selector would
// have used down, the cluster must reject the upload with
// NOT_ENOUGH_UPLOAD_TARGETS rather than commit a single-replica write
// when UploadMin requires two.
func TestUploadFailsBelowUploadMin(t *testing.T) {
	dir, _, b, c := newThree(t)
	b.Down = true
	c.Down = true
	cfg := Config{}
	cfg.SetReplicationCount(2)
	comp := New(dir, nil, cfg)

	err := upload(t, comp, "f", "hello")
	if !errors.Is(err, ErrNotEnoughUploadTargets) {
		t.Fatalf("expected ErrNotEnoughUploadTargets, got %v", err)
	}
}

// TestUploadMidStreamFailureStillReachesQuorum models a partition that
// accepts the open but dies 3 bytes into the write: with 3 candidates and
// UploadMin=2, the two survivors must still commit the replica.
func TestUploadMidStreamFailureStillReachesQuorum(t *testing.T) {
	dir, a, _, _ := newThree(t)
	a.FailAfter = 3
	// UploadMax=3 guarantees `a` is among the opened destinations, so the
	// mid-stream failure is actually exercised regardless of the
	// selector's ordering.
	cfg := Config{DeadThreshold: 1, UploadMin: 2, UploadMax: 3}
	comp := New(dir, nil, cfg)

	if err := upload(t, comp, "f", "hello world"); err != nil {
		t.Fatalf("upload must still reach quorum despite one mid-stream failure, got %v", err)
	}
	if dir.IsAlive("a") {
		t.Error("the partition that failed mid-stream must be marked dead")
	}

	got, err := download(t, comp, "f")
	if err != nil || got != "hello world" {
		t.Fatalf("download after upload = %q, %v, want %q, nil", got, err, "hello world")
	}
}

// TestClusterDegradedRejectsOperations: once the dead count exceeds
// DeadThreshold, every operation must fail fast instead of attempting a
// partial write or read.
func TestClusterDegradedRejectsOperations(t *testing.T) {
	dir, _, b, c := newThree(t)
	b.Down = true
	c.Down = true
	cfg := Config{DeadThreshold: 1, UploadMin: 1, UploadMax: 1}
	comp := New(dir, nil, cfg)

	dir.MarkDead("b")
	dir.MarkDead("c")

	if err := upload(t, comp, "f", "hello"); !errors.Is(err, ErrClusterDegraded) {
		t.Fatalf("expected ErrClusterDegraded with 2 dead partitions over threshold 1, got %v", err)
	}
}

// TestDownloadFailsOverToNextReplica: the preferred replica dies partway
// through the stream and the combiner must fail over to a surviving
// replica without duplicating or dropping bytes.
func TestDownloadFailsOverToNextReplica(t *testing.T) {
	dir, a, b, _ := newThree(t)
	// Replicate to all three so the failover target below is guaranteed
	// to actually hold the data, independent of rendezvous ordering.
	cfg := Config{DeadThreshold: 1, UploadMin: 2, UploadMax: 3}
	comp := New(dir, nil, cfg)
	if err := upload(t, comp, "f", "hello world"); err != nil {
		t.Fatalf("setup upload: %v", err)
	}

	// Model a mid-download failure by re-wrapping two partitions' FS so
	// their Download supplier dies after 3 bytes, forcing failover.
	dir2 := partition.NewDirectory(
		&partition.Partition{ID: "a", FS: dyingDownload{a, 3}},
		&partition.Partition{ID: "b", FS: dyingDownload{b, 3}},
	)
	comp2 := New(dir2, nil, cfg)
	got, err := download(t, comp2, "f")
	if err != nil {
		t.Fatalf("download must fail over rather than error, got %v", err)
	}
	if got != "hello world" {
		t.Fatalf("download = %q, want %q (no duplication, no gap across failover)", got, "hello world")
	}
}

// dyingDownload wraps an fs.FS so its Download supplier always dies after
// n bytes on the first (offset==0) call, but serves normally afterward,
// modeling a replica that fails once and a failover candidate that can
// resume at an arbitrary offset.
type dyingDownload struct {
	fs.FS
	n int
}

func (d dyingDownload) Download(ctx context.Context, name string, offset, limit uint64) (fs.Supplier, error) {
	sup, err := d.FS.Download(ctx, name, offset, limit)
	if err != nil {
		return nil, err
	}
	if offset != 0 {
		return sup, nil
	}
	return &failAfterNBytes{ReadCloser: sup, remaining: d.n}, nil
}

type failAfterNBytes struct {
	io.ReadCloser
	remaining int
}

var errSimulatedDownloadFailure = errors.New("simulated download failure")

func (f *failAfterNBytes) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, errSimulatedDownloadFailure
	}
	if len(p) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.ReadCloser.Read(p)
	f.remaining -= n
	return n, err
}

// TestDownloadNotFoundWhenEveryReplicaAgrees covers the case where every
// alive replica genuinely lacks the file: the cluster must surface
// FILE_NOT_FOUND rather than NO_REPLICAS_AVAILABLE.
func TestDownloadNotFoundWhenEveryReplicaAgrees(t *testing.T) {
	dir, _, _, _ := newThree(t)
	cfg := Config{}
	cfg.SetReplicationCount(2)
	comp := New(dir, nil, cfg)

	_, err := download(t, comp, "nope")
	if !errors.Is(err, fs.ErrFileNotFound) {
		t.Fatalf("expected FILE_NOT_FOUND when every replica agrees the name is absent, got %v", err)
	}
}

// TestDeleteAllOneApplicationErrorDoesNotMarkDead: an application-level
// error from one partition (e.g. the name never existed there) must not
// evict that partition, unlike a transport failure.
func TestDeleteAllOneApplicationErrorDoesNotMarkDead(t *testing.T) {
	dir, a, b, c := newThree(t)
	cfg := Config{}
	cfg.SetReplicationCount(2)
	comp := New(dir, nil, cfg)

	if err := upload(t, comp, "f", "hello"); err != nil {
		t.Fatalf("setup upload: %v", err)
	}
	// Simulate one partition independently lacking the file (e.g. it
	// missed a prior replication round) by wrapping its FS to return an
	// application error for this one name, instead of delegating.
	dir2 := partition.NewDirectory(
		&partition.Partition{ID: "a", FS: a},
		&partition.Partition{ID: "b", FS: b},
		&partition.Partition{ID: "c", FS: missingNameFS{c, "f"}},
	)
	comp2 := New(dir2, nil, cfg)

	err := comp2.DeleteAll(context.Background(), []string{"f"})
	if err == nil {
		t.Fatal("expected DeleteAll to surface the application error")
	}
	if !dir2.IsAlive("c") {
		t.Error("an application-level error must never mark a partition dead")
	}
}

type missingNameFS struct {
	fs.FS
	name string
}

func (m missingNameFS) DeleteAll(ctx context.Context, names []string) error {
	for _, n := range names {
		if n == m.name {
			return fs.ErrFileNotFound
		}
	}
	return m.FS.DeleteAll(ctx, names)
}

// TestPingReconcilesAndReportsDegraded exercises Ping's dual role: it
// rehabilitates partitions that answer again, and still reports
// ErrClusterDegraded if too many remain unreachable.
func TestPingReconcilesAndReportsDegraded(t *testing.T) {
	dir, _, b, c := newThree(t)
	cfg := Config{DeadThreshold: 1, UploadMin: 1, UploadMax: 1}
	comp := New(dir, nil, cfg)

	b.Down = true
	c.Down = true
	dir.MarkDead("b")
	dir.MarkDead("c")

	if err := comp.Ping(context.Background()); !errors.Is(err, ErrClusterDegraded) {
		t.Fatalf("expected ErrClusterDegraded, got %v", err)
	}

	b.Down = false
	if err := comp.Ping(context.Background()); err != nil {
		t.Fatalf("Ping must rehabilitate b and fall back under threshold, got %v", err)
	}
	if !dir.IsAlive("b") {
		t.Error("b must be marked alive again after a successful Ping")
	}
}

var _ fs.FS = (*Composer)(nil)
