// Package fs defines the abstract remote-filesystem contract every
// composition layer in this repo (the cluster composer, the wire
// adapters, and any mounting layer above them) must honor identically.
// Files are opaque byte streams addressed by path-like string names; the
// only structural operation on a name is the longest-prefix split the
// mounting collaborator uses (SplitPrefix), which the cluster itself never
// calls.
package fs

import "context"

// FS is the remote-filesystem operation surface. Every method is
// asynchronous in the sense that it takes a ctx and may block on I/O;
// cancelling ctx must release any stream opened for that call.
type FS interface {
	// Upload accepts an immutable file of unknown size. Failure can occur
	// at three moments: the call itself (refusal), while writing to the
	// returned Consumer (I/O/validation), or at CloseWithError(nil) (commit
	// failure).
	Upload(ctx context.Context, name string) (Consumer, error)

	// UploadSized is like Upload but the stream MUST deliver exactly size
	// bytes: more fails with ErrUnexpectedData, fewer with
	// ErrUnexpectedEndOfStream (detected at CloseWithError(nil)).
	UploadSized(ctx context.Context, name string, size uint64) (Consumer, error)

	// Append extends an existing file starting at offset. offset beyond the
	// current size fails with ErrIllegalOffset; offset within the current
	// size is idempotent overlap (bytes already present must match what is
	// written, best-effort; see backend implementations).
	Append(ctx context.Context, name string, offset uint64) (Consumer, error)

	// Download reads up to limit bytes starting at offset. Missing name
	// fails with ErrFileNotFound; a negative-equivalent offset/limit fails
	// with ErrBadRange (callers use uint64 so this manifests as a type-level
	// guarantee; wire adapters must reject negative wire values before
	// calling in). limit beyond the file's remaining bytes is silently
	// clamped to max(0, size-offset).
	Download(ctx context.Context, name string, offset, limit uint64) (Supplier, error)

	// Delete is idempotent; it never fails with ErrFileNotFound.
	Delete(ctx context.Context, name string) error

	// DeleteAll is a bulk Delete. Atomicity is not guaranteed: an error on
	// any element fails the whole batch, but partial effects may persist.
	DeleteAll(ctx context.Context, names []string) error

	// CopyAll is a bulk Copy, src name -> dst name. Same atomicity caveat
	// as DeleteAll.
	CopyAll(ctx context.Context, srcToDst map[string]string) error

	// MoveAll is a bulk Move, src name -> dst name. Same atomicity caveat.
	MoveAll(ctx context.Context, srcToDst map[string]string) error

	// Copy streams src to dst. Implementations may override this default
	// (DefaultCopy) with a server-side copy when the backend offers one.
	Copy(ctx context.Context, src, dst string) error

	// Move is Copy then Delete(src), a no-op when src == dst.
	Move(ctx context.Context, src, dst string) error

	// List resolves a shell-style glob (*, ?, **, [...]) over /-separated
	// segments into a map of matching names to their Metadata. A malformed
	// pattern fails with ErrMalformedGlob.
	List(ctx context.Context, glob string) (map[string]Metadata, error)

	// Info returns the Metadata for name, or (Metadata{}, false, nil) if
	// absent.
	Info(ctx context.Context, name string) (Metadata, bool, error)

	// InfoAll is a bulk Info.
	InfoAll(ctx context.Context, names []string) (map[string]Metadata, error)

	// Ping is a cheap liveness check.
	Ping(ctx context.Context) error
}

// DefaultCopy implements Copy as download(src) streamed to upload(dst),
// for any FS that lacks a server-side copy.
func DefaultCopy(ctx context.Context, f FS, src, dst string) error {
	supplier, err := f.Download(ctx, src, 0, ^uint64(0))
	if err != nil {
		return err
	}
	consumer, err := f.Upload(ctx, dst)
	if err != nil {
		supplier.Close()
		return err
	}
	_, err = Copy(ctx, consumer, supplier)
	return err
}

// DefaultMove implements Move as Copy then Delete(src), a no-op when
// src == dst.
func DefaultMove(ctx context.Context, f FS, src, dst string) error {
	if src == dst {
		return nil
	}
	if err := f.Copy(ctx, src, dst); err != nil {
		return err
	}
	return f.Delete(ctx, src)
}

// DefaultInfoAll implements InfoAll as a fan-out of Info, for any FS
// that has no bulk-info shortcut.
func DefaultInfoAll(ctx context.Context, f FS, names []string) (map[string]Metadata, error) {
	out := make(map[string]Metadata, len(names))
	for _, name := range names {
		md, ok, err := f.Info(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = md
		}
	}
	return out, nil
}

// SplitPrefix performs the longest-prefix split on "/" that the mounting
// collaborator uses to dispatch by path prefix. The cluster composer never
// calls this; it is provided here because the filesystem contract is the
// one place both the (out-of-scope) mounting layer and the cluster agree
// on name structure.
func SplitPrefix(name string) (prefix, rest string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
