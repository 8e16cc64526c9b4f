package transcript_test

import (
	"errors"
	"strings"
	"testing"

	"vidscribe/internal/transcript"
)

func TestCollectJoinsTrimmedText(t *testing.T) {
	stream := transcript.FromSegments([]transcript.Segment{
		{Start: 0, End: 1.5, Text: "  Hello "},
		{Start: 1.5, End: 2.0, Text: "world. "},
		{Start: 2.0, End: 3.25, Text: "   "},
		{Start: 3.25, End: 4.75, Text: "Again"},
	})

	agg, err := transcript.Collect(stream, false)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if agg.Text != "Hello world.  Again" {
		t.Fatalf("unexpected text %q", agg.Text)
	}
	if agg.WordCount != 3 {
		t.Fatalf("expected 3 words, got %d", agg.WordCount)
	}
	if agg.Duration != 4.75 {
		t.Fatalf("expected duration 4.75, got %v", agg.Duration)
	}
	if agg.Empty() {
		t.Fatal("expected non-empty aggregate")
	}
	if agg.SegmentCount() != 4 {
		t.Fatalf("expected 4 segments counted, got %d", agg.SegmentCount())
	}
	if agg.Segments != nil {
		t.Fatal("expected segments to be dropped when not requested")
	}
}

func TestCollectTextProperty(t *testing.T) {
	cases := [][]string{
		{"one"},
		{" a b ", "c", "", "  d  e"},
		{"\tline\n", "next"},
	}
	for _, texts := range cases {
		segments := make([]transcript.Segment, 0, len(texts))
		trimmed := make([]string, 0, len(texts))
		for i, text := range texts {
			segments = append(segments, transcript.Segment{Start: float64(i), End: float64(i) + 1, Text: text})
			trimmed = append(trimmed, strings.TrimSpace(text))
		}
		agg, err := transcript.Collect(transcript.FromSegments(segments), true)
		if err != nil {
			t.Fatalf("Collect(%q) returned error: %v", texts, err)
		}
		want := strings.TrimSpace(strings.Join(trimmed, " "))
		if agg.Text != want {
			t.Fatalf("Collect(%q) text = %q, want %q", texts, agg.Text, want)
		}
		if agg.Text != strings.TrimSpace(agg.Text) {
			t.Fatalf("text not trimmed: %q", agg.Text)
		}
		if len(agg.Segments) != len(texts) {
			t.Fatalf("expected %d kept segments, got %d", len(texts), len(agg.Segments))
		}
	}
}

func TestCollectKeepsSpacingOfEmptySegments(t *testing.T) {
	stream := transcript.FromSegments([]transcript.Segment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: ""},
		{Start: 2, End: 3, Text: "b"},
	})
	agg, err := transcript.Collect(stream, false)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if agg.Text != "a  b" {
		t.Fatalf("text = %q, want %q", agg.Text, "a  b")
	}
	if agg.WordCount != 2 {
		t.Fatalf("expected 2 words, got %d", agg.WordCount)
	}
}

func TestCollectEmptyStream(t *testing.T) {
	agg, err := transcript.Collect(transcript.FromSegments(nil), false)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if !agg.Empty() {
		t.Fatal("expected empty aggregate")
	}
	if agg.Text != "" || agg.WordCount != 0 || agg.Duration != 0 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
}

func TestCollectRejectsOutOfOrder(t *testing.T) {
	stream := transcript.FromSegments([]transcript.Segment{
		{Start: 2, End: 3, Text: "late"},
		{Start: 1, End: 2, Text: "early"},
	})
	if _, err := transcript.Collect(stream, false); !errors.Is(err, transcript.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestCollectRejectsInvertedTiming(t *testing.T) {
	stream := transcript.FromSegments([]transcript.Segment{{Start: 5, End: 4, Text: "bad"}})
	if _, err := transcript.Collect(stream, false); !errors.Is(err, transcript.ErrInvalidSegment) {
		t.Fatalf("expected ErrInvalidSegment, got %v", err)
	}
}

func TestCollectPropagatesProducerError(t *testing.T) {
	boom := errors.New("decoder exited 1")
	calls := 0
	closed := 0
	stream := transcript.NewStream(func() (transcript.Segment, bool, error) {
		calls++
		if calls == 1 {
			return transcript.Segment{Start: 0, End: 1, Text: "partial"}, true, nil
		}
		return transcript.Segment{}, false, boom
	}, func() error {
		closed++
		return nil
	})

	if _, err := transcript.Collect(stream, false); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected stream closed once, got %d", closed)
	}
}

func TestStreamIsSingleUse(t *testing.T) {
	stream := transcript.FromSegments([]transcript.Segment{{Start: 0, End: 1, Text: "once"}})

	count := 0
	for _, err := range stream.All() {
		if err != nil {
			t.Fatalf("first pass error: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 segment, got %d", count)
	}

	var second []error
	for seg, err := range stream.All() {
		if seg.Text != "" {
			t.Fatalf("expected no segments on second pass, got %q", seg.Text)
		}
		second = append(second, err)
	}
	if len(second) != 1 || !errors.Is(second[0], transcript.ErrStreamConsumed) {
		t.Fatalf("expected single ErrStreamConsumed, got %v", second)
	}

	if _, err := transcript.Collect(stream, false); !errors.Is(err, transcript.ErrStreamConsumed) {
		t.Fatalf("expected Collect on consumed stream to fail, got %v", err)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	calls := 0
	closeErr := errors.New("kill failed")
	stream := transcript.NewStream(nil, func() error {
		calls++
		return closeErr
	})
	for range 3 {
		if err := stream.Close(); !errors.Is(err, closeErr) {
			t.Fatalf("unexpected close error %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected close func called once, got %d", calls)
	}
}
