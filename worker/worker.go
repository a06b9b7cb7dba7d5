package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robmorgan/orbit/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// DefaultIdle is how long an idle worker sleeps between polls.
const DefaultIdle = 25 * time.Millisecond

// Responder sends results back to the processing path.
type Responder interface {
	Respond(job Job) bool
}

// Handler performs one request on the worker goroutine.
type Handler func(job Job, r Responder)

// Options configure a Worker.
type Options struct {
	Name         string
	RingCapacity int
	Idle         time.Duration
	Clock        clock.Clock
	Log          *logrus.Entry
}

// Worker runs slow requests, such as file I/O, off the processing path.
// The processing side submits requests and drains responses; both rings
// are single producer, single consumer.
type Worker struct {
	name      string
	requests  *Ring[Job]
	responses *Ring[Job]
	wake      chan struct{}
	handler   Handler
	clock     clock.Clock
	idle      time.Duration
	log       *logrus.Entry
}

// New creates a worker. Zero options fall back to a 4096 job ring, the
// default idle back-off, the real clock and the project logger.
func New(handler Handler, opts Options) *Worker {
	if opts.RingCapacity <= 0 {
		opts.RingCapacity = 4096
	}
	if opts.Idle <= 0 {
		opts.Idle = DefaultIdle
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.GetProjectLogger()
	}

	return &Worker{
		name:      opts.Name,
		requests:  NewRing[Job](opts.RingCapacity),
		responses: NewRing[Job](opts.RingCapacity),
		wake:      make(chan struct{}, 1),
		handler:   handler,
		clock:     opts.Clock,
		idle:      opts.Idle,
		log:       opts.Log.WithField("worker", opts.Name),
	}
}

func (w *Worker) Name() string {
	return w.name
}

// Submit enqueues a request and wakes the worker. It never blocks and
// reports false when the request ring is full.
func (w *Worker) Submit(job Job) bool {
	if !w.requests.TrySend(job) {
		return false
	}
	w.Wakeup()
	return true
}

// Wakeup nudges the worker without queueing anything.
func (w *Worker) Wakeup() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Respond is called by the handler to hand a result back.
func (w *Worker) Respond(job Job) bool {
	return w.responses.TrySend(job)
}

// Responses exposes the result ring to the processing side.
func (w *Worker) Responses() *Ring[Job] {
	return w.responses
}

// Drain passes queued results to fn, oldest first, until the ring is empty
// or fn returns false. A result rejected by fn stays queued. It returns the
// number of results consumed.
func (w *Worker) Drain(fn func(job Job) bool) int {
	n := 0
	for {
		job, ok := w.responses.Peek()
		if !ok || !fn(job) {
			return n
		}
		w.responses.TryRecv()
		n++
	}
}

// Work handles every queued request on the calling goroutine and returns how
// many there were. It must not run concurrently with Run.
func (w *Worker) Work() int {
	n := 0
	for {
		job, ok := w.requests.TryRecv()
		if !ok {
			return n
		}
		w.log.WithFields(logrus.Fields{"kind": job.Kind, "gen": job.Gen}).Trace("Handling job")
		w.handler(job, w)
		n++
	}
}

// Run handles requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	w.log.WithField("idle", w.idle).Debug("Worker started")

	t := w.clock.NewTimer(w.idle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Worker shutdown")
			return
		case <-w.wake:
			w.Work()
		case <-t.C():
			if w.Work() > 0 {
				t.Reset(0)
			} else {
				t.Reset(w.idle)
			}
		}
	}
}
