package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshfs/meshfs/cluster/splitter"
	"github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/partition"
)

// Upload implements fs.FS.Upload: open up to UploadMax partition
// consumers in selector preference order, skipping candidates that refuse,
// and commit once at least UploadMin of them acknowledge end-of-stream.
func (c *Composer) Upload(ctx context.Context, name string) (fs.Consumer, error) {
	return c.upload(ctx, name, nil)
}

// UploadSized implements fs.FS.UploadSized: the same algorithm, but every
// opened partition consumer is additionally a fixed-size target, so a
// short or long stream is caught per-partition as UNEXPECTED_DATA /
// UNEXPECTED_END_OF_STREAM rather than silently committing a partial
// replica.
func (c *Composer) UploadSized(ctx context.Context, name string, size uint64) (fs.Consumer, error) {
	return c.upload(ctx, name, &size)
}

func (c *Composer) upload(ctx context.Context, name string, size *uint64) (fs.Consumer, error) {
	if err := c.checkDegraded(); err != nil {
		return nil, err
	}

	// Rank every alive partition, not just UploadMax of them: a candidate
	// that refuses the open is skipped in favor of the next one down the
	// preference order, so the attempt list must extend past the target
	// replica count.
	ids := c.candidates(name, len(c.dir.Alive()))
	dests := make([]splitter.Dest, 0, int(c.cfg.UploadMax))
	labelToID := make(map[string]partition.ID, len(ids))

	for _, p := range ids {
		var consumer fs.Consumer
		var err error
		if size != nil {
			consumer, err = p.FS.UploadSized(ctx, name, *size)
		} else {
			consumer, err = p.FS.Upload(ctx, name)
		}
		if err != nil {
			wrapped := c.dir.MarkIfDead(p.ID, err)
			fs.Debugf(p.ID, "upload open failed, trying next candidate: %v", wrapped)
			continue
		}
		dests = append(dests, splitter.Dest{Label: string(p.ID), Consumer: consumer})
		labelToID[string(p.ID)] = p.ID
		if len(dests) >= int(c.cfg.UploadMax) {
			break
		}
	}

	if len(dests) < int(c.cfg.UploadMin) {
		for _, d := range dests {
			_ = d.Consumer.CloseWithError(ErrNotEnoughUploadTargets)
		}
		return nil, fmt.Errorf("%w: opened %d of required %d", ErrNotEnoughUploadTargets, len(dests), c.cfg.UploadMin)
	}

	entryConsumer, entrySupplier := fs.NewStream(ctx)
	done := make(chan error, 1)
	go func() {
		results, err := splitter.FanOut(ctx, entrySupplier, dests, int(c.cfg.UploadMin))
		for _, r := range results {
			if r.Err != nil {
				if id, ok := labelToID[r.Label]; ok {
					_ = c.dir.MarkIfDead(id, r.Err)
				}
			}
		}
		if err != nil {
			err = fmt.Errorf("%w: quorum lost mid-stream", ErrNotEnoughUploadTargets)
		}
		done <- err
	}()

	return &uploadConsumer{Consumer: entryConsumer, done: done}, nil
}

// Append implements fs.FS.Append by extending the file on every selected
// partition the same way Upload opens its consumers, with one difference:
// an application error from a candidate (ILLEGAL_OFFSET, most likely) is
// surfaced immediately instead of treated as a partition to route around,
// since every healthy replica would refuse the same offset.
func (c *Composer) Append(ctx context.Context, name string, offset uint64) (fs.Consumer, error) {
	if err := c.checkDegraded(); err != nil {
		return nil, err
	}

	ids := c.candidates(name, len(c.dir.Alive()))
	dests := make([]splitter.Dest, 0, int(c.cfg.UploadMax))
	labelToID := make(map[string]partition.ID, len(ids))

	for _, p := range ids {
		consumer, err := p.FS.Append(ctx, name, offset)
		if err != nil {
			wrapped := c.dir.MarkIfDead(p.ID, err)
			if fs.IsApplicationError(wrapped) {
				for _, d := range dests {
					_ = d.Consumer.CloseWithError(wrapped)
				}
				return nil, wrapped
			}
			continue
		}
		dests = append(dests, splitter.Dest{Label: string(p.ID), Consumer: consumer})
		labelToID[string(p.ID)] = p.ID
		if len(dests) >= int(c.cfg.UploadMax) {
			break
		}
	}

	if len(dests) < int(c.cfg.UploadMin) {
		for _, d := range dests {
			_ = d.Consumer.CloseWithError(ErrNotEnoughUploadTargets)
		}
		return nil, fmt.Errorf("%w: opened %d of required %d", ErrNotEnoughUploadTargets, len(dests), c.cfg.UploadMin)
	}

	entryConsumer, entrySupplier := fs.NewStream(ctx)
	done := make(chan error, 1)
	go func() {
		results, err := splitter.FanOut(ctx, entrySupplier, dests, int(c.cfg.UploadMin))
		for _, r := range results {
			if r.Err != nil {
				if id, ok := labelToID[r.Label]; ok {
					_ = c.dir.MarkIfDead(id, r.Err)
				}
			}
		}
		if err != nil {
			err = fmt.Errorf("%w: quorum lost mid-stream", ErrNotEnoughUploadTargets)
		}
		done <- err
	}()

	return &uploadConsumer{Consumer: entryConsumer, done: done}, nil
}

// uploadConsumer defers its CloseWithError's success/failure to the
// fan-out's own quorum decision, matching the ack-on-eos contract
// fs.Consumer documents: a caller's Write completing does not mean the
// replica commit has; only CloseWithError(nil) returning does. The
// outcome is latched so closing twice (cancel after close, or vice
// versa) returns the same result instead of blocking.
type uploadConsumer struct {
	fs.Consumer
	done chan error
	once sync.Once
	res  error
}

func (u *uploadConsumer) CloseWithError(err error) error {
	u.once.Do(func() {
		cerr := u.Consumer.CloseWithError(err)
		u.res = <-u.done
		if u.res == nil && err == nil && cerr != nil {
			u.res = cerr
		}
	})
	return u.res
}
