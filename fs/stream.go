package fs

import (
	"context"
	"io"
)

// Consumer is the producer-facing half of a byte stream: a caller writes
// chunks to it and finally calls CloseWithError(nil) to signal a clean
// end-of-stream, or CloseWithError(err) to signal cancellation/failure.
//
// The separation between "last byte accepted" (the final Write) and "commit
// acknowledged" (CloseWithError(nil) returning successfully) is
// deliberate: a Consumer may buffer or replicate internally and must only
// report success once that commit has actually happened.
type Consumer interface {
	io.Writer
	// CloseWithError finalizes the stream. err == nil means normal
	// end-of-stream; any other value cancels/fails the stream. It returns
	// an error if the commit (not just the write) failed.
	CloseWithError(err error) error
}

// Supplier is the consumer-facing half of a byte stream: a caller reads
// chunks from it until io.EOF, and must always Close it (idempotently) to
// release any held resources, even on early abandonment (cancellation).
type Supplier interface {
	io.ReadCloser
}

// pipeConsumer/pipeSupplier wrap io.Pipe to give Consumer/Supplier their
// ack-on-eos semantics as a first-class, reusable primitive instead of
// each backend wiring its own pipe.
type pipeConsumer struct {
	w      *io.PipeWriter
	ctx    context.Context
	cancel context.CancelFunc
}

type pipeSupplier struct {
	r      *io.PipeReader
	cancel context.CancelFunc
}

// NewStream creates a connected Consumer/Supplier pair. ctx governs
// cancellation: cancelling it closes both halves with ctx.Err().
func NewStream(ctx context.Context) (Consumer, Supplier) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		_ = pw.CloseWithError(ctx.Err())
	}()
	c := &pipeConsumer{w: pw, ctx: ctx, cancel: cancel}
	s := &pipeSupplier{r: pr, cancel: cancel}
	return c, s
}

func (c *pipeConsumer) Write(p []byte) (int, error) {
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	default:
	}
	return c.w.Write(p)
}

func (c *pipeConsumer) CloseWithError(err error) error {
	defer c.cancel()
	if err == nil {
		return c.w.Close()
	}
	return c.w.CloseWithError(err)
}

func (s *pipeSupplier) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *pipeSupplier) Close() error {
	defer s.cancel()
	return s.r.Close()
}

// Copy streams src to dst, honoring ctx cancellation between chunks, and
// finalizes dst with CloseWithError. It is the building block behind
// DefaultCopy (download-to-upload) and behind the wire adapters' body
// streaming.
func Copy(ctx context.Context, dst Consumer, src Supplier) (n int64, err error) {
	defer src.Close()
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			_ = dst.CloseWithError(ctx.Err())
			return n, ctx.Err()
		default:
		}
		rn, rerr := src.Read(buf)
		if rn > 0 {
			wn, werr := dst.Write(buf[:rn])
			n += int64(wn)
			if werr != nil {
				_ = dst.CloseWithError(werr)
				return n, werr
			}
		}
		if rerr == io.EOF {
			return n, dst.CloseWithError(nil)
		}
		if rerr != nil {
			_ = dst.CloseWithError(rerr)
			return n, rerr
		}
	}
}

// ReaderSupplier adapts a plain io.ReadCloser (or io.Reader, via
// io.NopCloser) into a Supplier. Used by backends whose underlying storage
// hands back ordinary readers.
func ReaderSupplier(rc io.ReadCloser) Supplier {
	return rc
}
