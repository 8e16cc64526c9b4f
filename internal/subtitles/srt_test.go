package subtitles

import (
	"math"
	"strings"
	"testing"

	"vidscribe/internal/transcript"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{3661.234, "01:01:01,234"},
		{3662.5, "01:01:02,500"},
		{59.9999, "00:00:59,999"},
		{0.001, "00:00:00,001"},
		{359999.999, "99:59:59,999"},
		{-4, "00:00:00,000"},
		{math.NaN(), "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.seconds); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		value string
		want  float64
	}{
		{"01:01:01,234", 3661.234},
		{"01:01:02.500", 3662.5},
		{" 00:00:00,5 ", 0.5},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.value)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tc.value, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}

	for _, bad := range []string{"", "1:2", "00:00:00", "00:61:00,000", "aa:00:00,000", "00:00:00,1234"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestTimestampRoundTripWithinOneMillisecond(t *testing.T) {
	for _, seconds := range []float64{0, 0.0004, 1.2345, 59.999, 3599.9995, 3661.234, 86399.123, 359999.9989} {
		parsed, err := ParseTimestamp(FormatTimestamp(seconds))
		if err != nil {
			t.Fatalf("round trip %v: %v", seconds, err)
		}
		if diff := seconds - parsed; diff < -1e-9 || diff >= 0.001 {
			t.Fatalf("round trip %v -> %v drifted by %v", seconds, parsed, diff)
		}
	}
}

func TestRenderAndParse(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0, End: 2.5, Text: " Hello there. "},
		{Start: 2.5, End: 3, Text: "   "},
		{Start: 3661.234, End: 3662.5, Text: "Much later"},
	}

	rendered := Render(segments)
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n" +
		"2\n00:00:02,500 --> 00:00:03,000\n\n\n" +
		"3\n01:01:01,234 --> 01:01:02,500\nMuch later\n\n"
	if rendered != want {
		t.Fatalf("unexpected render:\n%q", rendered)
	}

	cues, err := Parse(strings.NewReader(rendered))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	if cues[1].Index != 2 || cues[1].Text != "" {
		t.Fatalf("unexpected empty cue %+v", cues[1])
	}
	if cues[2].Index != 3 || cues[2].Text != "Much later" {
		t.Fatalf("unexpected cue %+v", cues[2])
	}
	if math.Abs(cues[2].Start-3661.234) > 1e-9 || math.Abs(cues[2].End-3662.5) > 1e-9 {
		t.Fatalf("unexpected cue timing %+v", cues[2])
	}
}

func TestRenderNumbersEverySegment(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: ""},
		{Start: 2, End: 3, Text: "b"},
	}
	cues, err := Parse(strings.NewReader(Render(segments)))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != len(segments) {
		t.Fatalf("expected %d cues, got %d", len(segments), len(cues))
	}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Fatalf("cue %d has index %d", i, cue.Index)
		}
	}
}

func TestParseToleratesCRLFAndMultilineText(t *testing.T) {
	input := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nfirst line\r\nsecond line\r\n\r\n\r\n2\r\n00:00:03.000 --> 00:00:04.000\r\nnext\r\n"
	cues, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Text != "first line\nsecond line" {
		t.Fatalf("unexpected multiline text %q", cues[0].Text)
	}
	if cues[1].Start != 3 {
		t.Fatalf("unexpected start %v", cues[1].Start)
	}
}

func TestParseRejectsMalformedBlocks(t *testing.T) {
	for _, input := range []string{
		"1\n",
		"x\n00:00:01,000 --> 00:00:02,000\ntext\n",
		"1\n00:00:01,000 00:00:02,000\ntext\n",
		"1\n00:00:03,000 --> 00:00:02,000\ntext\n",
	} {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}
