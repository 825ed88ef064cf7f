package lazy

import "github.com/rs/zerolog/log"

// Handle is the result slot of one job. It is written exactly once, by the
// worker, and read by the owner through Poll, TryGet or Get.
type Handle[T any] struct {
	done  chan struct{}
	value T
}

// Submit queues fn on p. On a closed pool fn runs on the calling goroutine.
func Submit[T any](p *Pool, fn func() T) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	j := job{
		run: func() {
			defer close(h.done)
			defer func() {
				if r := recover(); r != nil {
					var zero T
					h.value = zero
					log.Error().Interface("panic", r).Msg("lazy job panicked")
				}
			}()
			h.value = fn()
		},
		drop: func() { close(h.done) },
	}
	if !p.enqueue(j) {
		j.run()
	}
	return h
}

// Done returns a handle that is already resolved with v.
func Done[T any](v T) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{}), value: v}
	close(h.done)
	return h
}

// Poll reports whether the value is available, without blocking.
func (h *Handle[T]) Poll() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// TryGet returns the value if the job has finished.
func (h *Handle[T]) TryGet() (T, bool) {
	if !h.Poll() {
		var zero T
		return zero, false
	}
	return h.value, true
}

// Get blocks until the job has finished.
func (h *Handle[T]) Get() T {
	<-h.done
	return h.value
}
