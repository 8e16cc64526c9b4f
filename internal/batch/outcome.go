package batch

import (
	"time"
)

// Kind classifies the terminal state of an item.
type Kind int

// Outcome kinds.
const (
	Succeeded Kind = iota
	Skipped
	NoSpeech
	Failed
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case NoSpeech:
		return "no_speech"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseKind maps a stored kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{Succeeded, Skipped, NoSpeech, Failed} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Outcome is the typed result of processing one item.
type Outcome struct {
	Kind   Kind
	Reason string
	Err    error
	// Notice is a degraded-path warning for an otherwise terminal outcome,
	// such as falling back to the original video when extraction fails.
	Notice         string
	Words          int
	Duration       float64
	Language       string
	UsedAudio      bool
	TranscriptPath string
	SubtitlePath   string
	Elapsed        time.Duration
}

// Counters tallies outcomes. NoSpeech and Failed both count as errored.
type Counters struct {
	Succeeded int
	Skipped   int
	Errored   int
}

// Add increments the counter matching kind.
func (c *Counters) Add(kind Kind) {
	switch kind {
	case Succeeded:
		c.Succeeded++
	case Skipped:
		c.Skipped++
	default:
		c.Errored++
	}
}

// Processed returns the number of items that reached a terminal outcome.
func (c Counters) Processed() int {
	return c.Succeeded + c.Skipped + c.Errored
}

// Result pairs an item with its outcome.
type Result struct {
	Item    Item
	Outcome Outcome
}

// Summary describes a completed run.
type Summary struct {
	RunID     string
	Total     int
	Counters  Counters
	OutputDir string
	Results   []Result
	Started   time.Time
	Finished  time.Time
	// Cancelled is set when the context ended before every item was processed.
	Cancelled bool
}

// Notices returns one line per item that failed or degraded.
func (s Summary) Notices() []string {
	var notices []string
	for _, r := range s.Results {
		switch {
		case r.Outcome.Kind == NoSpeech || r.Outcome.Kind == Failed:
			notices = append(notices, r.Item.Name+": "+r.Outcome.Reason)
		case r.Outcome.Notice != "":
			notices = append(notices, r.Item.Name+": "+r.Outcome.Notice)
		}
	}
	return notices
}
