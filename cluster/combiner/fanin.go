// Package combiner implements the K-to-1 fan-in side of a download: several
// partitions independently supplying the same byte range, combined into one
// stream that survives a primary failing mid-read by skipping ahead on the
// next candidate to the byte already delivered.
package combiner

import (
	"context"
	"io"

	"github.com/meshfs/meshfs/fs"
)

// Source is one fan-in candidate: a label for error reporting and the FS to
// re-open a Download from on failover.
type Source struct {
	Label string
	FS    fs.FS
}

// combined is an fs.Supplier that elects among Sources in order, failing
// over on error and skipping bytes already delivered on the replacement.
type combined struct {
	ctx        context.Context
	name       string
	limit      uint64
	sources    []Source
	next       int
	cur        fs.Supplier
	curLabel   string
	delivered  uint64
	baseOffset uint64
}

// Combine opens sources[0] at offset and returns a Supplier that fails over
// through the remaining sources, in order, on any read error, each time
// skipping ahead to the byte already emitted downstream. It fails with
// ErrTruncatedStream if every remaining source is exhausted before the
// stream reaches its natural end, or if a failover source can't resume at
// the required offset.
func Combine(ctx context.Context, name string, offset, limit uint64, sources []Source) (fs.Supplier, error) {
	c := &combined{ctx: ctx, name: name, limit: limit, sources: sources, baseOffset: offset}
	if err := c.openNext(); err != nil {
		return nil, err
	}
	return c, nil
}

// openNext advances past any already-tried sources and opens the next one,
// resuming at baseOffset+delivered so the caller sees a seamless stream.
func (c *combined) openNext() error {
	for c.next < len(c.sources) {
		src := c.sources[c.next]
		c.next++
		remaining := c.limit
		if remaining != ^uint64(0) {
			if c.delivered >= remaining {
				return io.EOF
			}
			remaining -= c.delivered
		}
		s, err := src.FS.Download(c.ctx, c.name, c.baseOffset+c.delivered, remaining)
		if err != nil {
			fs.Debugf(src.Label, "fan-in candidate unavailable at offset %d: %v", c.baseOffset+c.delivered, err)
			continue
		}
		c.cur = s
		c.curLabel = src.Label
		return nil
	}
	return fs.ErrTruncatedStream
}

// Read implements fs.Supplier. On an error from the current candidate it
// transparently fails over to the next one, resuming exactly where the
// failed candidate left off.
func (c *combined) Read(p []byte) (int, error) {
	for {
		if c.cur == nil {
			if err := c.openNext(); err != nil {
				return 0, err
			}
		}
		n, err := c.cur.Read(p)
		if n > 0 {
			c.delivered += uint64(n)
		}
		if err == nil {
			return n, nil
		}
		if err == io.EOF {
			c.cur.Close()
			c.cur = nil
			return n, io.EOF
		}
		fs.Infof(c.curLabel, "fan-in primary failed mid-stream at offset %d, failing over: %v", c.baseOffset+c.delivered, err)
		c.cur.Close()
		c.cur = nil
		if n > 0 {
			return n, nil
		}
		if oerr := c.openNext(); oerr != nil {
			return 0, fs.ErrTruncatedStream
		}
	}
}

// Close releases the currently open candidate, if any. The caller is
// responsible for closing the remaining, never-opened candidates (there
// are none to close: Combine only ever holds one open source at a time).
func (c *combined) Close() error {
	if c.cur != nil {
		err := c.cur.Close()
		c.cur = nil
		return err
	}
	return nil
}
