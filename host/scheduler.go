package host

import (
	"context"
	"sync"

	"github.com/robmorgan/orbit/worker"
)

// WorkerPool runs every scheduled worker on its own goroutine until the
// pool's context ends.
type WorkerPool struct {
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.Mutex
	workers []*worker.Worker
}

func NewWorkerPool(ctx context.Context) *WorkerPool {
	return &WorkerPool{ctx: ctx}
}

func (p *WorkerPool) Schedule(w *worker.Worker) {
	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	p.wg.Add(1)
	go w.Run(p.ctx, &p.wg)
}

// Wait blocks until every worker has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Flush handles requests still queued after the pool stopped. Call it only
// once Wait has returned.
func (p *WorkerPool) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.workers {
		n += w.Work()
	}
	return n
}

// ManualScheduler collects workers and runs them only when asked, which
// makes offline rendering deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	workers []*worker.Worker
}

func (s *ManualScheduler) Schedule(w *worker.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, w)
}

// WorkAll handles the pending requests of every worker and returns the
// total number handled.
func (s *ManualScheduler) WorkAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.workers {
		n += w.Work()
	}
	return n
}
