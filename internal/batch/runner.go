package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"vidscribe/internal/engine"
	"vidscribe/internal/fileutil"
	"vidscribe/internal/logging"
	"vidscribe/internal/services"
	"vidscribe/internal/transcript"
)

// Pipeline stage names stamped on the item context.
const (
	StageExtracting   = "extracting"
	StageTranscribing = "transcribing"
	StageWriting      = "writing"
)

// Extractor converts a video to a WAV file, reporting success.
type Extractor interface {
	Extract(ctx context.Context, videoPath, targetPath string, sampleRate int) bool
}

// Transcriber runs speech recognition on a media file.
type Transcriber interface {
	Transcribe(ctx context.Context, input string) (*transcript.Stream, engine.Info, error)
}

// Writer places artifacts in the output directory.
type Writer interface {
	Dir() string
	TranscriptPath(base string) string
	SubtitlePath(base string) string
	AudioPath(base string) string
	WriteTranscript(ctx context.Context, base, text string) (string, error)
	WriteSubtitles(ctx context.Context, base string, segments []transcript.Segment) (string, error)
}

// Progress locates an item within the run.
type Progress struct {
	Index int
	Total int
}

// Reporter receives per-item progress for display.
type Reporter interface {
	ItemStarted(ctx context.Context, p Progress, item Item)
	ItemFinished(ctx context.Context, p Progress, item Item, outcome Outcome)
}

// RunInfo describes a run as it begins.
type RunInfo struct {
	RunID     string
	Total     int
	OutputDir string
	Started   time.Time
}

// Recorder persists run history. Recorder errors are logged and never
// change an item's outcome.
type Recorder interface {
	RunStarted(ctx context.Context, info RunInfo) error
	ItemRecorded(ctx context.Context, runID string, item Item, outcome Outcome) error
	RunFinished(ctx context.Context, summary Summary) error
}

// Options controls per-item behavior.
type Options struct {
	Resume     bool
	Extract    bool
	Subtitles  bool
	SampleRate int
	// ItemTimeout bounds one item's processing; zero disables the limit.
	ItemTimeout time.Duration
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithExtractor enables audio pre-extraction.
func WithExtractor(e Extractor) RunnerOption {
	return func(r *Runner) { r.extractor = e }
}

// WithReporter sets the progress reporter.
func WithReporter(rep Reporter) RunnerOption {
	return func(r *Runner) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// WithRecorder sets the history recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.NewComponentLogger(logger, "batch") }
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		if id != "" {
			r.newRunID = func() string { return id }
		}
	}
}

// Runner processes items through extraction, transcription, and writing.
type Runner struct {
	transcriber Transcriber
	writer      Writer
	extractor   Extractor
	reporter    Reporter
	recorder    Recorder
	opts        Options
	logger      *slog.Logger
	now         func() time.Time
	newRunID    func() string
}

// NewRunner wires a runner around the required collaborators.
func NewRunner(t Transcriber, w Writer, opts Options, options ...RunnerOption) *Runner {
	r := &Runner{
		transcriber: t,
		writer:      w,
		reporter:    nopReporter{},
		recorder:    nopRecorder{},
		opts:        opts,
		logger:      logging.NewComponentLogger(nil, "batch"),
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Run processes items sequentially and returns the run summary. It never
// fails: every problem is captured in an item's Outcome. When ctx ends the
// remaining items are left unprocessed and Summary.Cancelled is set.
func (r *Runner) Run(ctx context.Context, items []Item) Summary {
	runID := r.newRunID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	summary := Summary{
		RunID:     runID,
		Total:     len(items),
		OutputDir: r.writer.Dir(),
		Started:   r.now(),
	}
	if err := r.recorder.RunStarted(ctx, RunInfo{RunID: runID, Total: len(items), OutputDir: summary.OutputDir, Started: summary.Started}); err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_write_failed", logging.Error(err))
	}
	logger.Info("batch started", logging.Int("files", len(items)), logging.String("output_dir", summary.OutputDir))

	for i, item := range items {
		if ctx.Err() != nil {
			summary.Cancelled = true
			logger.Warn("batch cancelled", logging.Int("remaining", len(items)-i))
			break
		}
		item = r.assignPaths(item)
		progress := Progress{Index: i + 1, Total: len(items)}
		itemCtx := services.WithItem(ctx, item.Name)

		r.reporter.ItemStarted(itemCtx, progress, item)
		outcome := r.processItem(itemCtx, item)
		summary.Counters.Add(outcome.Kind)
		summary.Results = append(summary.Results, Result{Item: item, Outcome: outcome})
		r.reporter.ItemFinished(itemCtx, progress, item, outcome)
		r.logOutcome(itemCtx, outcome)

		if err := r.recorder.ItemRecorded(context.WithoutCancel(itemCtx), runID, item, outcome); err != nil {
			logging.WarnWithContext(logging.WithContext(itemCtx, r.logger), "history unavailable", "history_write_failed", logging.Error(err))
		}
	}

	summary.Finished = r.now()
	if err := r.recorder.RunFinished(context.WithoutCancel(ctx), summary); err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_write_failed", logging.Error(err))
	}
	logger.Info("batch finished",
		logging.Int("succeeded", summary.Counters.Succeeded),
		logging.Int("skipped", summary.Counters.Skipped),
		logging.Int("errored", summary.Counters.Errored),
		logging.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	return summary
}

func (r *Runner) assignPaths(item Item) Item {
	item.TranscriptPath = r.writer.TranscriptPath(item.Base)
	item.SubtitlePath = r.writer.SubtitlePath(item.Base)
	item.AudioPath = r.writer.AudioPath(item.Base)
	return item
}

// processItem runs one item to a terminal outcome. The extracted audio path
// and whether it was created are declared before any work so the deferred
// cleanup covers every return and a recovered panic.
func (r *Runner) processItem(ctx context.Context, item Item) (outcome Outcome) {
	started := r.now()
	var (
		audioPath string
		created   bool
	)
	defer func() {
		if created {
			r.removeAudio(ctx, audioPath)
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "item panicked", "item_panic",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = failedOutcome(fmt.Errorf("panic: %v", rec))
		}
		outcome.Elapsed = r.now().Sub(started)
	}()

	if r.opts.Resume && fileutil.IsRegularFile(item.TranscriptPath) {
		return Outcome{Kind: Skipped, Reason: "transcript already exists", TranscriptPath: item.TranscriptPath}
	}

	if r.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ItemTimeout)
		defer cancel()
	}

	input := item.Path
	var notice string
	if r.opts.Extract && r.extractor != nil {
		audioPath = item.AudioPath
		if r.extractor.Extract(services.WithStage(ctx, StageExtracting), item.Path, audioPath, r.opts.SampleRate) {
			created = true
			input = audioPath
		} else {
			notice = "audio extraction failed; transcribed the original video"
		}
	}

	transcribeCtx := services.WithStage(ctx, StageTranscribing)
	stream, info, err := r.transcriber.Transcribe(transcribeCtx, input)
	if err != nil {
		return withNotice(failedOutcome(err), notice)
	}
	agg, err := transcript.Collect(stream, r.opts.Subtitles)
	if err != nil {
		return withNotice(failedOutcome(err), notice)
	}
	if agg.Empty() {
		return Outcome{
			Kind:      NoSpeech,
			Reason:    "no speech detected",
			Err:       services.ErrNoSpeech,
			Notice:    notice,
			Language:  info.Language,
			UsedAudio: created,
		}
	}

	writeCtx := services.WithStage(ctx, StageWriting)
	transcriptPath, err := r.writer.WriteTranscript(writeCtx, item.Base, agg.Text)
	if err != nil {
		return withNotice(failedOutcome(err), notice)
	}
	var subtitlePath string
	if r.opts.Subtitles {
		subtitlePath, err = r.writer.WriteSubtitles(writeCtx, item.Base, agg.Segments)
		if err != nil {
			// A transcript without its subtitles would be skipped on resume.
			if _, rmErr := fileutil.RemoveIfExists(transcriptPath); rmErr != nil {
				r.logger.Debug("remove transcript after subtitle failure", logging.Error(rmErr))
			}
			return withNotice(failedOutcome(err), notice)
		}
	}

	duration := agg.Duration
	if duration == 0 {
		duration = info.Duration
	}
	return Outcome{
		Kind:           Succeeded,
		Notice:         notice,
		Words:          agg.WordCount,
		Duration:       duration,
		Language:       info.Language,
		UsedAudio:      created,
		TranscriptPath: transcriptPath,
		SubtitlePath:   subtitlePath,
	}
}

func (r *Runner) removeAudio(ctx context.Context, path string) {
	if _, err := fileutil.RemoveIfExists(path); err != nil {
		logging.WithContext(ctx, r.logger).Debug("remove extracted audio failed",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}

func (r *Runner) logOutcome(ctx context.Context, outcome Outcome) {
	logger := logging.WithContext(ctx, r.logger)
	attrs := []logging.Attr{
		logging.String("outcome", outcome.Kind.String()),
		logging.Duration("elapsed", outcome.Elapsed),
	}
	switch outcome.Kind {
	case Succeeded:
		logger.Info("transcript written", logging.Args(append(attrs,
			logging.Int("words", outcome.Words),
			logging.Float64("duration_seconds", outcome.Duration),
			logging.String("language", outcome.Language),
			logging.Bool("used_audio", outcome.UsedAudio),
		)...)...)
	case Skipped:
		logger.Info("item skipped", logging.Args(append(attrs, logging.String("reason", outcome.Reason))...)...)
	case NoSpeech:
		logging.WarnWithContext(logger, "no speech detected", "item_no_speech", append(attrs,
			logging.String(logging.FieldImpact, "no transcript was written"))...)
	default:
		logging.ErrorWithContext(logger, "item failed", "item_failed", append(attrs,
			logging.String("reason", outcome.Reason),
			logging.Error(outcome.Err))...)
	}
}

func failedOutcome(err error) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		reason = "timed out: " + reason
	}
	return Outcome{Kind: Failed, Reason: reason, Err: err}
}

func withNotice(o Outcome, notice string) Outcome {
	o.Notice = notice
	return o
}

type nopReporter struct{}

func (nopReporter) ItemStarted(context.Context, Progress, Item)           {}
func (nopReporter) ItemFinished(context.Context, Progress, Item, Outcome) {}

type nopRecorder struct{}

func (nopRecorder) RunStarted(context.Context, RunInfo) error                 { return nil }
func (nopRecorder) ItemRecorded(context.Context, string, Item, Outcome) error { return nil }
func (nopRecorder) RunFinished(context.Context, Summary) error                { return nil }
