package worker

// Ring is a bounded queue between exactly one producer and one consumer.
// Neither side ever blocks: a full ring refuses new items and an empty ring
// returns nothing.
type Ring[T any] struct {
	ch chan T

	// consumer side only
	peeked  T
	hasPeek bool
}

// NewRing creates a ring holding up to capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{ch: make(chan T, capacity)}
}

// TrySend enqueues v and reports whether there was room.
func (r *Ring[T]) TrySend(v T) bool {
	select {
	case r.ch <- v:
		return true
	default:
		return false
	}
}

// TryRecv dequeues the oldest item.
func (r *Ring[T]) TryRecv() (T, bool) {
	if r.hasPeek {
		v := r.peeked
		var zero T
		r.peeked, r.hasPeek = zero, false
		return v, true
	}
	select {
	case v := <-r.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Peek returns the oldest item without consuming it.
func (r *Ring[T]) Peek() (T, bool) {
	if !r.hasPeek {
		select {
		case v := <-r.ch:
			r.peeked, r.hasPeek = v, true
		default:
			var zero T
			return zero, false
		}
	}
	return r.peeked, true
}

// Len is the number of queued items.
func (r *Ring[T]) Len() int {
	n := len(r.ch)
	if r.hasPeek {
		n++
	}
	return n
}

func (r *Ring[T]) Cap() int {
	return cap(r.ch)
}
