// Package memfs is an in-memory fs.FS used only by this repo's own tests
// to stand in for a partition's backing store. It is not a production
// backend; it exists purely to give the cluster, partition, combiner, and
// wire adapter tests something concrete to replicate across.
package memfs

import (
	"bytes"
	"context"
	"sync"

	"github.com/meshfs/meshfs/fs"
)

type file struct {
	data    []byte
	modTime int64
}

// FS is an in-memory fs.FS. The zero value is ready to use. Clock lets
// tests control the timestamp assigned to each write deterministically;
// if nil, every write gets ModTime 0 (fine for tests that don't depend on
// recency).
type FS struct {
	mu    sync.Mutex
	files map[string]file
	Clock func() int64

	// FailAfter, if set, makes the Consumer of the next
	// Upload/UploadSized/Append fail every Write once this many bytes have
	// been written to it, simulating a partition that dies mid-stream. It
	// is consumed (reset to 0) when that next Consumer is opened.
	FailAfter int
	// Down makes every call fail with a transport-ish error, simulating
	// an unreachable partition.
	Down bool
}

// New builds an empty FS.
func New() *FS { return &FS{files: make(map[string]file)} }

func (m *FS) now() int64 {
	if m.Clock != nil {
		return m.Clock()
	}
	return 0
}

var errDown = fs.NewError(fs.Unknown, "partition down")

type writer struct {
	fsys   *FS
	name   string
	buf    bytes.Buffer
	failAt int
	sized  bool
	want   uint64
}

func (m *FS) Upload(ctx context.Context, name string) (fs.Consumer, error) {
	return m.open(name, false, 0)
}

func (m *FS) UploadSized(ctx context.Context, name string, size uint64) (fs.Consumer, error) {
	return m.open(name, true, size)
}

func (m *FS) Append(ctx context.Context, name string, offset uint64) (fs.Consumer, error) {
	m.mu.Lock()
	f, ok := m.files[name]
	m.mu.Unlock()
	cur := uint64(0)
	if ok {
		cur = uint64(len(f.data))
	}
	if offset > cur {
		return nil, fs.ErrIllegalOffset
	}
	w, err := m.open(name, false, 0)
	if err != nil {
		return nil, err
	}
	ww := w.(*writer)
	if ok {
		ww.buf.Write(f.data[:offset])
	}
	return ww, nil
}

func (m *FS) open(name string, sized bool, size uint64) (fs.Consumer, error) {
	if m.Down {
		return nil, errDown
	}
	failAt := m.FailAfter
	m.FailAfter = 0
	return &writer{fsys: m, name: name, sized: sized, want: size, failAt: failAt}, nil
}

func (w *writer) Write(p []byte) (int, error) {
	n, _ := w.buf.Write(p)
	if w.failAt > 0 && w.buf.Len() >= w.failAt {
		return n, fs.NewError(fs.Unknown, "simulated mid-stream failure")
	}
	return n, nil
}

func (w *writer) CloseWithError(err error) error {
	if err != nil {
		return err
	}
	if w.sized {
		got := uint64(w.buf.Len())
		if got > w.want {
			return fs.ErrUnexpectedData
		}
		if got < w.want {
			return fs.ErrUnexpectedEndOfStream
		}
	}
	w.fsys.mu.Lock()
	if w.fsys.files == nil {
		w.fsys.files = make(map[string]file)
	}
	w.fsys.files[w.name] = file{data: append([]byte(nil), w.buf.Bytes()...), modTime: w.fsys.now()}
	w.fsys.mu.Unlock()
	return nil
}

func (m *FS) Download(ctx context.Context, name string, offset, limit uint64) (fs.Supplier, error) {
	if m.Down {
		return nil, errDown
	}
	m.mu.Lock()
	f, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return nil, fs.ErrFileNotFound
	}
	size := uint64(len(f.data))
	if offset > size {
		offset = size
	}
	end := size
	if limit != ^uint64(0) && offset+limit < size {
		end = offset + limit
	}
	data := append([]byte(nil), f.data[offset:end]...)
	return readCloser{bytes.NewReader(data)}, nil
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }

func (m *FS) Delete(ctx context.Context, name string) error {
	if m.Down {
		return errDown
	}
	m.mu.Lock()
	delete(m.files, name)
	m.mu.Unlock()
	return nil
}

func (m *FS) DeleteAll(ctx context.Context, names []string) error {
	for _, n := range names {
		if err := m.Delete(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *FS) CopyAll(ctx context.Context, srcToDst map[string]string) error {
	for src, dst := range srcToDst {
		if err := m.Copy(ctx, src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *FS) MoveAll(ctx context.Context, srcToDst map[string]string) error {
	for src, dst := range srcToDst {
		if err := m.Move(ctx, src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *FS) Copy(ctx context.Context, src, dst string) error {
	return fs.DefaultCopy(ctx, m, src, dst)
}

func (m *FS) Move(ctx context.Context, src, dst string) error {
	return fs.DefaultMove(ctx, m, src, dst)
}

func (m *FS) List(ctx context.Context, glob string) (map[string]fs.Metadata, error) {
	if m.Down {
		return nil, errDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]fs.Metadata)
	for name, f := range m.files {
		matched, ok := fs.MatchGlob(glob, name)
		if !ok {
			return nil, fs.ErrMalformedGlob
		}
		if matched {
			out[name] = fs.Metadata{Size: uint64(len(f.data)), ModTime: f.modTime}
		}
	}
	return out, nil
}

func (m *FS) Info(ctx context.Context, name string) (fs.Metadata, bool, error) {
	if m.Down {
		return fs.Metadata{}, false, errDown
	}
	m.mu.Lock()
	f, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return fs.Metadata{}, false, nil
	}
	return fs.Metadata{Size: uint64(len(f.data)), ModTime: f.modTime}, true, nil
}

func (m *FS) InfoAll(ctx context.Context, names []string) (map[string]fs.Metadata, error) {
	return fs.DefaultInfoAll(ctx, m, names)
}

func (m *FS) Ping(ctx context.Context) error {
	if m.Down {
		return errDown
	}
	return nil
}

// Contents returns a copy of name's bytes and whether it exists, for test
// assertions.
func (m *FS) Contents(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

var _ fs.FS = (*FS)(nil)
