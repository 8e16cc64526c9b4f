// Package history persists a ledger of batch runs and their per-item
// outcomes in SQLite.
//
// A Store implements batch.Recorder so the orchestrator can write through it
// while a run progresses; the history command reads the same database back
// with RecentRuns and RunItems. The database lives at paths.history_db and
// uses WAL journaling with a short busy retry so a reader never blocks a run.
package history
