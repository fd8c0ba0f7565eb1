package tcp

import (
	"context"
	"sync"

	mfs "github.com/meshfs/meshfs/fs"
)

// RemoteFS adapts a single-connection Client to the fs.FS streaming
// contract, so a dialed partition can sit behind partition.Partition.FS
// exactly like any other backend. Client's Upload/Download calls are
// synchronous over one io.Reader/io.Writer; RemoteFS bridges that to
// fs.FS's Consumer/Supplier halves with a pipe, the same bridging pattern
// cluster/upload.go's uploadConsumer uses to defer an ack to a background
// goroutine's outcome.
type RemoteFS struct {
	Client *Client
}

// NewRemoteFS wraps an already-dialed Client as an fs.FS.
func NewRemoteFS(c *Client) *RemoteFS {
	return &RemoteFS{Client: c}
}

func (r *RemoteFS) Upload(ctx context.Context, name string) (mfs.Consumer, error) {
	return r.uploadLike(ctx, name, func(src mfs.Supplier) error {
		return r.Client.Upload(ctx, name, src)
	})
}

func (r *RemoteFS) UploadSized(ctx context.Context, name string, size uint64) (mfs.Consumer, error) {
	return r.uploadLike(ctx, name, func(src mfs.Supplier) error {
		return r.Client.UploadSized(ctx, name, size, src)
	})
}

func (r *RemoteFS) Append(ctx context.Context, name string, offset uint64) (mfs.Consumer, error) {
	return r.uploadLike(ctx, name, func(src mfs.Supplier) error {
		return r.Client.Append(ctx, name, offset, src)
	})
}

// uploadLike wires a fresh pipe into run, returning the pipe's Consumer
// half immediately while run drains the Supplier half on the connection's
// single in-flight request slot. The returned Consumer's CloseWithError
// blocks until run's result is known, matching the ack-on-eos contract.
func (r *RemoteFS) uploadLike(ctx context.Context, name string, run func(mfs.Supplier) error) (mfs.Consumer, error) {
	consumer, supplier := mfs.NewStream(ctx)
	done := make(chan error, 1)
	go func() { done <- run(supplier) }()
	return &remoteUploadConsumer{Consumer: consumer, done: done}, nil
}

type remoteUploadConsumer struct {
	mfs.Consumer
	done chan error
	once sync.Once
	res  error
}

func (u *remoteUploadConsumer) CloseWithError(err error) error {
	u.once.Do(func() {
		cerr := u.Consumer.CloseWithError(err)
		u.res = <-u.done
		if u.res == nil && err == nil && cerr != nil {
			u.res = cerr
		}
	})
	return u.res
}

// Download performs the request handshake synchronously, so a refusal
// (FILE_NOT_FOUND and friends) is returned from the call itself, and hands
// back the response body as the Supplier. The caller must Close it to
// release the connection's request slot.
func (r *RemoteFS) Download(ctx context.Context, name string, offset, limit uint64) (mfs.Supplier, error) {
	return r.Client.OpenDownload(ctx, name, offset, limit)
}

func (r *RemoteFS) Delete(ctx context.Context, name string) error {
	return r.Client.Delete(ctx, name)
}

func (r *RemoteFS) DeleteAll(ctx context.Context, names []string) error {
	return r.Client.DeleteAll(ctx, names)
}

func (r *RemoteFS) CopyAll(ctx context.Context, srcToDst map[string]string) error {
	return r.Client.CopyAll(ctx, srcToDst)
}

func (r *RemoteFS) MoveAll(ctx context.Context, srcToDst map[string]string) error {
	return r.Client.MoveAll(ctx, srcToDst)
}

func (r *RemoteFS) Copy(ctx context.Context, src, dst string) error {
	return r.Client.Copy(ctx, src, dst)
}

func (r *RemoteFS) Move(ctx context.Context, src, dst string) error {
	return r.Client.Move(ctx, src, dst)
}

func (r *RemoteFS) List(ctx context.Context, glob string) (map[string]mfs.Metadata, error) {
	return r.Client.List(ctx, glob)
}

func (r *RemoteFS) Info(ctx context.Context, name string) (mfs.Metadata, bool, error) {
	return r.Client.Info(ctx, name)
}

func (r *RemoteFS) InfoAll(ctx context.Context, names []string) (map[string]mfs.Metadata, error) {
	return r.Client.InfoAll(ctx, names)
}

func (r *RemoteFS) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx)
}

var _ mfs.FS = (*RemoteFS)(nil)
