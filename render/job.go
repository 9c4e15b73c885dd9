package render

import (
	"context"
	"image"
	"sync"

	mandel "github.com/marben/mandelzoom"
)

// JobStats counts how the tiles of a job were obtained.
type JobStats struct {
	Tiles     int // tiles in the frame
	CacheHits int // served by the tile cache
	Computed  int // evaluated and committed by this job
	Discarded int // dropped because the generation was superseded
}

// Job is the pending result of Scheduler.Render.
type Job struct {
	req  mandel.RenderRequest
	done chan struct{}

	m              sync.Mutex
	parts          []*image.RGBA
	totalPixels    int
	finishedPixels int
	stats          JobStats
	cancelled      error

	frame *mandel.Frame
	err   error
}

func newJob(req mandel.RenderRequest) *Job {
	return &Job{
		req:  req,
		done: make(chan struct{}),
	}
}

// Request returns the request the job renders.
func (j *Job) Request() mandel.RenderRequest { return j.req }

// Generation returns the generation of the job's request.
func (j *Job) Generation() uint64 { return j.req.Generation }

// Done is closed once the frame is assembled or the job failed.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job resolves. A superseded job returns *mandel.CancelledError.
func (j *Job) Wait() (*mandel.Frame, error) {
	<-j.done
	return j.frame, j.err
}

// WaitContext is Wait bounded by ctx.
func (j *Job) WaitContext(ctx context.Context) (*mandel.Frame, error) {
	select {
	case <-j.done:
		return j.frame, j.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Progress returns the committed fraction of the frame's pixels.
func (j *Job) Progress() float32 {
	j.m.Lock()
	defer j.m.Unlock()
	if j.totalPixels == 0 {
		return 0
	}
	return float32(j.finishedPixels) / float32(j.totalPixels)
}

// Stats returns the tile counters gathered so far.
func (j *Job) Stats() JobStats {
	j.m.Lock()
	defer j.m.Unlock()
	return j.stats
}

func (j *Job) start(slots []slot) {
	j.m.Lock()
	defer j.m.Unlock()
	j.parts = make([]*image.RGBA, len(slots))
	j.stats.Tiles = len(slots)
	for _, s := range slots {
		j.totalPixels += s.dst.Dx() * s.dst.Dy()
	}
}

// tileFinished records the colored part of tile i.
func (j *Job) tileFinished(i int, s slot, part *image.RGBA, hit bool) {
	j.m.Lock()
	defer j.m.Unlock()
	j.parts[i] = part
	j.finishedPixels += s.dst.Dx() * s.dst.Dy()
	if hit {
		j.stats.CacheHits++
	} else {
		j.stats.Computed++
	}
}

// discard records a tile dropped for err; the first error sticks.
func (j *Job) discard(err error) {
	j.m.Lock()
	defer j.m.Unlock()
	j.stats.Discarded++
	if j.cancelled == nil {
		j.cancelled = err
	}
}

func (j *Job) cancelErr() error {
	j.m.Lock()
	defer j.m.Unlock()
	return j.cancelled
}

func (j *Job) resolve(f *mandel.Frame, err error) {
	j.frame, j.err = f, err
	j.parts = nil
	close(j.done)
}
