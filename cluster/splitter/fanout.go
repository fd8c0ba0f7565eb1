// Package splitter implements the 1-to-K fan-out side of an upload: one
// source stream broadcast to K destination partitions, committed once M of
// them acknowledge.
package splitter

import (
	"context"
	"io"
	"sync"

	"github.com/meshfs/meshfs/fs"
)

// Dest is one fan-out destination: a label for error reporting and the
// Consumer half of its stream.
type Dest struct {
	Label    string
	Consumer fs.Consumer
}

// Result is the per-destination outcome of a FanOut.
type Result struct {
	Label string
	Err   error
}

// chunk is one unit of broadcast: a data slice, or an EOF/error signal
// terminating the lane.
type chunk struct {
	data []byte
	eof  bool
	err  error
}

// FanOut reads src to completion, broadcasting every chunk to all dests.
// A destination whose Write or final CloseWithError fails is dropped: the
// broadcast continues to the rest so one slow/broken replica never blocks
// the others from committing. src is read at the pace of the slowest
// still-alive destination (each dest's channel is unbuffered), so the
// upstream producer is paced rather than buffered without bound.
//
// If fewer than quorum destinations end up acknowledging, FanOut returns
// an error alongside the full per-destination Results so the caller can
// decide what, if anything, to roll back.
func FanOut(ctx context.Context, src fs.Supplier, dests []Dest, quorum int) ([]Result, error) {
	defer src.Close()

	lanes := make([]chan chunk, len(dests))
	for i := range lanes {
		lanes[i] = make(chan chunk)
	}

	results := make([]Result, len(dests))
	var wg sync.WaitGroup
	for i, d := range dests {
		wg.Add(1)
		go func(i int, d Dest) {
			defer wg.Done()
			results[i] = runLane(d, lanes[i])
		}(i, d)
	}

	buf := make([]byte, 64*1024)
	broadcast := func(c chunk) bool {
		sent := false
		for _, lane := range lanes {
			select {
			case lane <- c:
				sent = true
			case <-ctx.Done():
			}
		}
		return sent
	}

readLoop:
	for {
		select {
		case <-ctx.Done():
			broadcast(chunk{err: ctx.Err()})
			break readLoop
		default:
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			broadcast(chunk{data: cp})
		}
		if rerr == io.EOF {
			broadcast(chunk{eof: true})
			break readLoop
		}
		if rerr != nil {
			broadcast(chunk{err: rerr})
			break readLoop
		}
	}
	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()

	acks := 0
	for _, r := range results {
		if r.Err == nil {
			acks++
		}
	}
	if acks < quorum {
		return results, fs.NewError(fs.Unknown, "fan-out quorum not reached")
	}
	return results, nil
}

// runLane drains one destination's chunk channel, writing each chunk and
// finalizing with the terminal err (nil on EOF). It never panics on a
// destination failure; it reports the failure as this lane's Result and
// simply stops writing, letting the other lanes keep going.
func runLane(d Dest, lane <-chan chunk) Result {
	var failed error
	terminated := false
	for c := range lane {
		if failed != nil || terminated {
			continue
		}
		if len(c.data) > 0 {
			if _, err := d.Consumer.Write(c.data); err != nil {
				failed = err
				_ = d.Consumer.CloseWithError(err)
				continue
			}
		}
		if c.eof {
			failed = d.Consumer.CloseWithError(nil)
			terminated = true
			continue
		}
		if c.err != nil {
			_ = d.Consumer.CloseWithError(c.err)
			failed = c.err
			terminated = true
		}
	}
	// A lane whose channel closed before any terminal chunk never saw
	// end-of-stream (the broadcast was abandoned); it must not count as
	// an ack.
	if failed == nil && !terminated {
		failed = io.ErrUnexpectedEOF
		_ = d.Consumer.CloseWithError(failed)
	}
	return Result{Label: d.Label, Err: failed}
}
