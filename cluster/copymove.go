package cluster

import (
	"context"

	"github.com/meshfs/meshfs/fs"
)

// Copy implements fs.FS.Copy via the derived default (download(src)
// streamed to upload(dst)), inheriting fan-out-on-upload,
// fan-in-on-download, and liveness behavior without any bespoke cluster
// code.
func (c *Composer) Copy(ctx context.Context, src, dst string) error {
	return fs.DefaultCopy(ctx, c, src, dst)
}

// Move implements fs.FS.Move via the derived default (copy then
// delete(src)).
func (c *Composer) Move(ctx context.Context, src, dst string) error {
	return fs.DefaultMove(ctx, c, src, dst)
}

var _ fs.FS = (*Composer)(nil)
