package transcript

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfOrder reports a segment whose start precedes the previous one.
	ErrOutOfOrder = errors.New("segment out of order")
	// ErrInvalidSegment reports negative or inverted segment timing.
	ErrInvalidSegment = errors.New("invalid segment timing")
)

// Segment is one timed span of recognized speech. Times are seconds from the
// start of the media.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Validate checks End >= Start >= 0.
func (s Segment) Validate() error {
	if s.Start < 0 || s.End < s.Start {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidSegment, s.Start, s.End)
	}
	return nil
}

// Aggregate is the collected result of a transcription stream.
type Aggregate struct {
	Text      string
	WordCount int
	// Duration is the end time of the final segment, or 0 when empty.
	Duration float64
	// Segments is populated only when Collect was asked to keep them.
	Segments []Segment
	count    int
}

// Empty reports whether the stream produced no segments.
func (a Aggregate) Empty() bool {
	return a.count == 0
}

// SegmentCount returns the number of segments consumed.
func (a Aggregate) SegmentCount() int {
	return a.count
}

// Collect drains stream in order and builds an Aggregate. The stream is
// closed before Collect returns. Segment texts are trimmed and joined with a
// single space; the whole text is trimmed again.
func Collect(stream *Stream, keepSegments bool) (Aggregate, error) {
	if stream == nil {
		return Aggregate{}, errors.New("collect: nil stream")
	}

	var (
		agg     Aggregate
		builder strings.Builder
		prev    float64
		runErr  error
	)
	for seg, err := range stream.All() {
		if err != nil {
			runErr = err
			break
		}
		if err := seg.Validate(); err != nil {
			runErr = err
			break
		}
		if agg.count > 0 && seg.Start < prev {
			runErr = fmt.Errorf("%w: %.3f after %.3f", ErrOutOfOrder, seg.Start, prev)
			break
		}
		prev = seg.Start
		agg.count++
		agg.Duration = seg.End

		if agg.count > 1 {
			builder.WriteByte(' ')
		}
		builder.WriteString(strings.TrimSpace(seg.Text))
		if keepSegments {
			agg.Segments = append(agg.Segments, seg)
		}
	}

	closeErr := stream.Close()
	if runErr != nil {
		return Aggregate{}, runErr
	}
	if closeErr != nil {
		return Aggregate{}, fmt.Errorf("close stream: %w", closeErr)
	}

	agg.Text = strings.TrimSpace(builder.String())
	agg.WordCount = len(strings.Fields(agg.Text))
	return agg, nil
}
