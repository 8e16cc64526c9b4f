package transcript

import (
	"errors"
	"iter"
	"sync"
)

// ErrStreamConsumed is yielded when a Stream is iterated a second time.
var ErrStreamConsumed = errors.New("segment stream already consumed")

// NextFunc pulls the next segment. It returns ok=false once the producer is
// exhausted; a non-nil error is terminal.
type NextFunc func() (seg Segment, ok bool, err error)

// Stream is a forward-only, non-restartable sequence of segments.
type Stream struct {
	mu       sync.Mutex
	next     NextFunc
	closeFn  func() error
	consumed bool

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps a pull function. closeFn releases the producer and may be nil.
func NewStream(next NextFunc, closeFn func() error) *Stream {
	return &Stream{next: next, closeFn: closeFn}
}

// FromSegments returns a Stream over a fixed slice.
func FromSegments(segments []Segment) *Stream {
	idx := 0
	return NewStream(func() (Segment, bool, error) {
		if idx >= len(segments) {
			return Segment{}, false, nil
		}
		seg := segments[idx]
		idx++
		return seg, true, nil
	}, nil)
}

// All yields segments in production order. Iteration stops after the first
// error. A second call yields a single ErrStreamConsumed.
func (s *Stream) All() iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		s.mu.Lock()
		if s.consumed {
			s.mu.Unlock()
			yield(Segment{}, ErrStreamConsumed)
			return
		}
		s.consumed = true
		s.mu.Unlock()

		if s.next == nil {
			return
		}
		for {
			seg, ok, err := s.next()
			if err != nil {
				yield(Segment{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(seg, nil) {
				return
			}
		}
	}
}

// Close releases the producer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}
