package cluster

import (
	"context"
	"sync"

	"github.com/meshfs/meshfs/cluster/combiner"
	"github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/partition"
)

// Download implements fs.FS.Download. It probes every alive partition in
// parallel, keeps the ones that report holding the file, and attaches them
// to a fan-in combiner ordered by selector preference so failover always
// tries the next-most-preferred replica first. If no partition can serve
// the name at all, it fails with FILE_NOT_FOUND only when every alive
// partition answered and reported the name absent; if any probe failed
// with a transport/unknown error, or no partition is alive, it fails with
// NO_REPLICAS_AVAILABLE.
func (c *Composer) Download(ctx context.Context, name string, offset, limit uint64) (fs.Supplier, error) {
	if err := c.checkDegraded(); err != nil {
		return nil, err
	}
	alive := c.dir.Alive()
	ranked := c.candidates(name, len(alive))

	type attempt struct {
		p   *partition.Partition
		err error
	}
	results := make([]attempt, len(ranked))
	var wg sync.WaitGroup
	for i, p := range ranked {
		wg.Add(1)
		go func(i int, p *partition.Partition) {
			defer wg.Done()
			// Probe with Info first so a FILE_NOT_FOUND doesn't cost the
			// partition an open stream it will just have to close again.
			_, ok, err := p.FS.Info(ctx, name)
			switch {
			case err != nil:
				results[i] = attempt{p: p, err: err}
			case !ok:
				results[i] = attempt{p: p, err: fs.ErrFileNotFound}
			default:
				results[i] = attempt{p: p}
			}
		}(i, p)
	}
	wg.Wait()

	sources := make([]combiner.Source, 0, len(ranked))
	appErrors, transportErrors := 0, 0
	for _, r := range results {
		switch {
		case r.err == nil:
			sources = append(sources, combiner.Source{Label: string(r.p.ID), FS: r.p.FS})
		case fs.IsApplicationError(r.err):
			appErrors++
		default:
			transportErrors++
			_ = c.dir.MarkIfDead(r.p.ID, r.err)
		}
	}

	if len(sources) == 0 {
		if appErrors > 0 && transportErrors == 0 {
			return nil, fs.ErrFileNotFound
		}
		return nil, ErrNoReplicasAvailable
	}

	return combiner.Combine(ctx, name, offset, limit, sources)
}
