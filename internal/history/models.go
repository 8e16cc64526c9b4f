package history

import (
	"time"

	"vidscribe/internal/batch"
)

// Run is one recorded batch run.
type Run struct {
	ID        string
	Started   time.Time
	Finished  *time.Time
	OutputDir string
	Total     int
	Counters  batch.Counters
	Cancelled bool
}

// InProgress reports whether the run never recorded its finish, either
// because it is still running or because the process died.
func (r Run) InProgress() bool {
	return r.Finished == nil
}

// ItemRecord is one item outcome within a run.
type ItemRecord struct {
	RunID          string
	Name           string
	SourcePath     string
	SizeBytes      int64
	Kind           batch.Kind
	Reason         string
	Notice         string
	Words          int
	Duration       float64
	Language       string
	UsedAudio      bool
	TranscriptPath string
	SubtitlePath   string
	Elapsed        time.Duration
	RecordedAt     time.Time
}
