package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidscribe/internal/batch"
	"vidscribe/internal/services"
)

// DefaultLimit bounds RecentRuns when the caller passes a non-positive limit.
const DefaultLimit = 20

const runColumns = `id, started_at, finished_at, output_dir, total, succeeded, skipped, errored, cancelled`

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id. A missing run wraps services.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "history", "get run", "no run with id "+id, nil)
	}
	return run, err
}

// RunItems returns the outcomes recorded for a run in processing order.
func (s *Store) RunItems(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, source_path, size_bytes, outcome, reason, notice, words,
			duration_seconds, language, used_audio, transcript_path, subtitle_path,
			elapsed_ms, recorded_at
		FROM item_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var (
			rec                                            ItemRecord
			outcome, recordedAt                            string
			reason, notice, language, transcript, subtitle sql.NullString
			usedAudio                                      int
			elapsedMS                                      int64
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Name, &rec.SourcePath, &rec.SizeBytes, &outcome,
			&reason, &notice, &rec.Words, &rec.Duration, &language, &usedAudio,
			&transcript, &subtitle, &elapsedMS, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		kind, ok := batch.ParseKind(outcome)
		if !ok {
			return nil, fmt.Errorf("scan item %s: unknown outcome %q", rec.Name, outcome)
		}
		rec.Kind = kind
		rec.Reason = stringOrEmpty(reason)
		rec.Notice = stringOrEmpty(notice)
		rec.Language = stringOrEmpty(language)
		rec.TranscriptPath = stringOrEmpty(transcript)
		rec.SubtitlePath = stringOrEmpty(subtitle)
		rec.UsedAudio = usedAudio != 0
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if t, err := parseTimeString(recordedAt); err == nil {
			rec.RecordedAt = t
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		started   string
		finished  sql.NullString
		cancelled int
	)
	if err := row.Scan(
		&run.ID, &started, &finished, &run.OutputDir, &run.Total,
		&run.Counters.Succeeded, &run.Counters.Skipped, &run.Counters.Errored, &cancelled,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if t, err := parseTimeString(started); err == nil {
		run.Started = t
	}
	if finished.Valid {
		if t, err := parseTimeString(finished.String); err == nil {
			run.Finished = &t
		}
	}
	run.Cancelled = cancelled != 0
	return run, nil
}
