package cluster

import (
	"context"

	"github.com/meshfs/meshfs/fs"
)

// Delete implements fs.FS.Delete by broadcasting to every alive partition
// and requiring all to succeed.
func (c *Composer) Delete(ctx context.Context, name string) error {
	return c.DeleteAll(ctx, []string{name})
}

// DeleteAll implements fs.FS.DeleteAll: broadcast to every alive
// partition, succeed only if every per-partition result succeeds and the
// dead count stays within DeadThreshold.
func (c *Composer) DeleteAll(ctx context.Context, names []string) error {
	if err := c.checkDegraded(); err != nil {
		return err
	}
	parts := c.dir.Alive()
	errs := make(Errors, len(parts))
	multithread(len(parts), func(i int) {
		err := parts[i].FS.DeleteAll(ctx, names)
		errs[i] = c.dir.MarkIfDead(parts[i].ID, err)
	})
	if err := errs.Err(); err != nil {
		return err
	}
	return c.checkDegraded()
}

// CopyAll implements fs.FS.CopyAll by broadcasting to every alive
// partition; each partition copies within itself, so no cross-partition
// streaming is involved.
func (c *Composer) CopyAll(ctx context.Context, srcToDst map[string]string) error {
	if err := c.checkDegraded(); err != nil {
		return err
	}
	parts := c.dir.Alive()
	errs := make(Errors, len(parts))
	multithread(len(parts), func(i int) {
		err := parts[i].FS.CopyAll(ctx, srcToDst)
		errs[i] = c.dir.MarkIfDead(parts[i].ID, err)
	})
	return errs.Err()
}

// MoveAll implements fs.FS.MoveAll by broadcasting to every alive
// partition.
func (c *Composer) MoveAll(ctx context.Context, srcToDst map[string]string) error {
	if err := c.checkDegraded(); err != nil {
		return err
	}
	parts := c.dir.Alive()
	errs := make(Errors, len(parts))
	multithread(len(parts), func(i int) {
		err := parts[i].FS.MoveAll(ctx, srcToDst)
		errs[i] = c.dir.MarkIfDead(parts[i].ID, err)
	})
	return errs.Err()
}

// List implements fs.FS.List: broadcast and reduce per-name using the
// metadata comparator, so the newest observation of each name wins.
func (c *Composer) List(ctx context.Context, glob string) (map[string]fs.Metadata, error) {
	if err := c.checkDegraded(); err != nil {
		return nil, err
	}
	parts := c.dir.Alive()
	listings := make([]map[string]fs.Metadata, len(parts))
	errs := make(Errors, len(parts))
	multithread(len(parts), func(i int) {
		listing, err := parts[i].FS.List(ctx, glob)
		if err != nil {
			errs[i] = c.dir.MarkIfDead(parts[i].ID, err)
			return
		}
		listings[i] = listing
	})
	if appErr := firstApplicationError(errs); appErr != nil {
		return nil, appErr
	}
	nonNil := make([]map[string]fs.Metadata, 0, len(listings))
	for _, l := range listings {
		if l != nil {
			nonNil = append(nonNil, l)
		}
	}
	return fs.Flatten(nonNil...), nil
}

// Info implements fs.FS.Info: broadcast and take the max metadata over
// successes.
func (c *Composer) Info(ctx context.Context, name string) (fs.Metadata, bool, error) {
	if err := c.checkDegraded(); err != nil {
		return fs.Metadata{}, false, err
	}
	parts := c.dir.Alive()
	infos := make([]*fs.Metadata, len(parts))
	errs := make(Errors, len(parts))
	multithread(len(parts), func(i int) {
		md, ok, err := parts[i].FS.Info(ctx, name)
		if err != nil {
			errs[i] = c.dir.MarkIfDead(parts[i].ID, err)
			return
		}
		if ok {
			infos[i] = &md
		}
	})
	if appErr := firstApplicationError(errs); appErr != nil {
		return fs.Metadata{}, false, appErr
	}
	md, found := fs.FlattenInfo(infos...)
	return md, found, nil
}

// InfoAll implements fs.FS.InfoAll as a broadcast of Info using the
// default fan-out helper.
func (c *Composer) InfoAll(ctx context.Context, names []string) (map[string]fs.Metadata, error) {
	return fs.DefaultInfoAll(ctx, c, names)
}

// Ping implements fs.FS.Ping by reconciling dead partitions and failing
// with ErrClusterDegraded if too many remain unreachable.
func (c *Composer) Ping(ctx context.Context) error {
	c.dir.CheckDeadPartitions(ctx)
	return c.checkDegraded()
}

// firstApplicationError returns the first application-level fs.Error in
// errs, if any, so a broadcast query can distinguish "this name really
// doesn't exist anywhere" from "some partitions were merely unreachable".
func firstApplicationError(errs Errors) error {
	for _, err := range errs {
		if err != nil && fs.IsApplicationError(err) {
			return err
		}
	}
	return nil
}
