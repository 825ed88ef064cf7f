// Package lazy runs jobs on a fixed set of worker goroutines and hands back a
// one-shot handle the owner can poll without blocking.
package lazy

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultWorkers leaves one core for the control goroutine.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

type job struct {
	run  func()
	drop func()
}

// Pool is a fixed-size worker pool with an unbounded FIFO queue. There is no
// priority and no cancellation: a submitted job runs to completion.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	closed  bool
	workers int
	wg      sync.WaitGroup
}

// NewPool starts workers goroutines; workers <= 0 means DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	log.Debug().Int("workers", workers).Msg("worker pool started")
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		j.run()
	}
}

// enqueue returns false when the pool is closed.
func (p *Pool) enqueue(j job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, j)
	p.cond.Signal()
	return true
}

// Close stops the workers after their current job. Queued jobs that never
// started resolve their handles with the zero value.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, j := range dropped {
		j.drop()
	}
	p.wg.Wait()
	log.Debug().Int("dropped", len(dropped)).Msg("worker pool stopped")
}
