package history

import (
	"context"
	"fmt"
	"time"

	"vidscribe/internal/batch"
)

var _ batch.Recorder = (*Store)(nil)

// RunStarted inserts the run row.
func (s *Store) RunStarted(ctx context.Context, info batch.RunInfo) error {
	err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, output_dir, total) VALUES (?, ?, ?, ?)`,
		info.RunID, formatTime(info.Started), info.OutputDir, info.Total,
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// ItemRecorded appends an item outcome to the run.
func (s *Store) ItemRecorded(ctx context.Context, runID string, item batch.Item, outcome batch.Outcome) error {
	err := s.exec(ctx,
		`INSERT INTO item_outcomes (
			run_id, name, source_path, size_bytes, outcome, reason, notice, words,
			duration_seconds, language, used_audio, transcript_path, subtitle_path,
			elapsed_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		item.Name,
		item.Path,
		item.SizeBytes,
		outcome.Kind.String(),
		nullableString(outcome.Reason),
		nullableString(outcome.Notice),
		outcome.Words,
		outcome.Duration,
		nullableString(outcome.Language),
		boolToInt(outcome.UsedAudio),
		nullableString(outcome.TranscriptPath),
		nullableString(outcome.SubtitlePath),
		outcome.Elapsed.Milliseconds(),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record item %s: %w", item.Name, err)
	}
	return nil
}

// RunFinished stores the final counters.
func (s *Store) RunFinished(ctx context.Context, summary batch.Summary) error {
	err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, skipped = ?, errored = ?, cancelled = ? WHERE id = ?`,
		formatTime(summary.Finished),
		summary.Counters.Succeeded,
		summary.Counters.Skipped,
		summary.Counters.Errored,
		boolToInt(summary.Cancelled),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}
