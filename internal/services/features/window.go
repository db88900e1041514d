package features

// Window is a bounded FIFO buffer. Pushing past capacity evicts the oldest
// element and keeps the order of the rest.
type Window[T any] struct {
	buf      []T
	capacity int
}

func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, 0, capacity), capacity: capacity}
}

func (w *Window[T]) Push(v T) {
	if len(w.buf) == w.capacity {
		copy(w.buf, w.buf[1:])
		w.buf[len(w.buf)-1] = v
		return
	}
	w.buf = append(w.buf, v)
}

func (w *Window[T]) Len() int { return len(w.buf) }

func (w *Window[T]) Cap() int { return w.capacity }

// Values returns a copy of the buffer, oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, len(w.buf))
	copy(out, w.buf)
	return out
}

// Last returns up to n most recent values, oldest first.
func (w *Window[T]) Last(n int) []T {
	if n > len(w.buf) {
		n = len(w.buf)
	}
	out := make([]T, n)
	copy(out, w.buf[len(w.buf)-n:])
	return out
}
