package conversion

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type job struct {
	ctx   context.Context
	event Event
	id    string
}

// Dispatcher delivers events in the background. Submissions wait in a
// bounded queue drained by a fixed set of workers; only a full queue drops
// an event. The request that produced it is never blocked.
type Dispatcher struct {
	poster  Poster
	timeout time.Duration
	log     logging.Logger
	queue   chan job

	mu     sync.RWMutex
	closed bool
	g      errgroup.Group
}

func NewDispatcher(p Poster, workers, queueSize int, timeout time.Duration, log logging.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		poster:  p,
		timeout: timeout,
		log:     log.With("module", "conversion"),
		queue:   make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.g.Go(d.work)
	}
	return d
}

func (d *Dispatcher) work() error {
	for j := range d.queue {
		d.deliver(j)
	}
	return nil
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	started := time.Now()
	if err := d.poster.Post(ctx, j.event); err != nil {
		d.log.Warn(ctx, "conversion event delivery failed", "event", j.event.Type, "email", j.event.Email, "job_id", j.id, "err", err)
		return
	}
	d.log.Info(ctx, "conversion event delivered", "event", j.event.Type, "email", j.event.Email, "job_id", j.id, "took", time.Since(started))
}

// Submit queues e for delivery and reports whether it was accepted. The job
// outlives ctx's cancellation but keeps its values.
func (d *Dispatcher) Submit(ctx context.Context, e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	j := job{ctx: context.WithoutCancel(ctx), event: e, id: uuid.NewString()}
	if d.closed {
		d.log.Warn(ctx, "conversion event dropped, dispatcher closed", "event", e.Type, "email", e.Email, "job_id", j.id)
		return false
	}

	select {
	case d.queue <- j:
		return true
	default:
		d.log.Error(ctx, "conversion event dropped, queue full", "event", e.Type, "email", e.Email, "job_id", j.id, "queue_size", cap(d.queue))
		return false
	}
}

// Close stops accepting events, drains the queue and waits for the workers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	return d.g.Wait()
}
