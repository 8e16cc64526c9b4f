package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidscribe/internal/audio"
	"vidscribe/internal/batch"
	"vidscribe/internal/config"
	"vidscribe/internal/engine"
	"vidscribe/internal/history"
	"vidscribe/internal/logging"
	"vidscribe/internal/notifications"
	"vidscribe/internal/output"
	"vidscribe/internal/preflight"
	"vidscribe/internal/services"
	"vidscribe/internal/storage/s3mirror"
)

type runFlags struct {
	input       string
	output      string
	model       string
	device      string
	language    string
	beamSize    int
	temperature float64
	sampleRate  int
	noVAD       bool
	noExtract   bool
	noResume    bool
	srt         bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.input, "input", "", "Folder containing the videos to transcribe")
	flags.StringVar(&f.output, "output", "", "Folder receiving transcripts")
	flags.StringVar(&f.model, "model", "", "Model name passed to the backend")
	flags.StringVar(&f.device, "device", "", "Inference device (auto, cuda, cpu)")
	flags.StringVar(&f.language, "language", "", "Spoken language hint (ISO code or name; auto to detect)")
	flags.IntVar(&f.beamSize, "beam-size", 0, "Decoder beam width")
	flags.Float64Var(&f.temperature, "temperature", 0, "Decoder sampling temperature")
	flags.IntVar(&f.sampleRate, "sample-rate", 0, "Sample rate of extracted audio in Hz")
	flags.BoolVar(&f.noVAD, "no-vad", false, "Disable voice-activity filtering")
	flags.BoolVar(&f.noExtract, "no-extract", false, "Transcribe videos directly without extracting audio")
	flags.BoolVar(&f.noResume, "no-resume", false, "Re-transcribe videos that already have a transcript")
	flags.BoolVar(&f.srt, "srt", false, "Also write SRT subtitles")
}

func (f *runFlags) apply(o *config.Overrides, changed func(string) bool) {
	if changed("input") {
		o.InputDir = &f.input
	}
	if changed("output") {
		o.OutputDir = &f.output
	}
	if changed("model") {
		o.Model = &f.model
	}
	if changed("device") {
		o.Device = &f.device
	}
	if changed("language") {
		o.Language = &f.language
	}
	if changed("beam-size") {
		o.BeamSize = &f.beamSize
	}
	if changed("temperature") {
		o.Temperature = &f.temperature
	}
	if changed("sample-rate") {
		o.SampleRate = &f.sampleRate
	}
	if changed("no-vad") {
		enabled := !f.noVAD
		o.VAD = &enabled
	}
	if changed("no-extract") {
		extract := !f.noExtract
		o.Extract = &extract
	}
	if changed("no-resume") {
		resume := !f.noResume
		o.Resume = &resume
	}
	if changed("srt") {
		o.Subtitles = &f.srt
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transcribe every video in the input folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := ctx.logger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()
			return runBatch(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
		},
	}
	ctx.run.register(cmd)
	return cmd
}

// runBatch returns an error only for fatal startup problems. The engine is
// constructed last; after that every item problem is reported in the summary.
func runBatch(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	notifier := notifications.NewService(cfg)
	fail := func(err error) error {
		if notifyErr := notifier.NotifyError(ctx, err, "startup"); notifyErr != nil {
			logger.Debug("startup error notification failed", logging.Error(notifyErr))
		}
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fail(services.Wrap(services.ErrConfiguration, "startup", "ensure directories", "", err))
	}
	if blocking := preflight.Blocking(preflight.RunAll(ctx, cfg)); len(blocking) > 0 {
		parts := make([]string, 0, len(blocking))
		for _, r := range blocking {
			parts = append(parts, r.Name+": "+r.Detail)
		}
		return fail(services.Wrap(services.ErrConfiguration, "startup", "preflight", strings.Join(parts, "; "), nil))
	}

	items, err := batch.Discover(cfg.Paths.InputDir, cfg.Output.Extensions)
	if err != nil {
		return fail(err)
	}

	lock, err := batch.AcquireLock(cfg.Paths.OutputDir)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("release run lock failed", logging.Error(err))
		}
	}()

	var mirror output.Mirror
	if cfg.Storage.S3Enabled {
		m, err := s3mirror.New(ctx, s3mirror.FromStorage(cfg.Storage))
		if err != nil {
			return fail(err)
		}
		mirror = m
	}
	writer := output.New(cfg.Paths.OutputDir, mirror,
		output.WithLogger(logger),
		output.WithMirrorRequired(cfg.Storage.Required),
	)

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return fail(err)
	}

	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Model: %s\n", eng.Describe())
	if len(items) == 0 {
		fmt.Fprintf(out, "No video files found in %s\n", cfg.Paths.InputDir)
		return nil
	}
	fmt.Fprintf(out, "Found %d video file(s) in %s\n\n", len(items), cfg.Paths.InputDir)

	options := []batch.RunnerOption{
		batch.WithLogger(logger),
		batch.WithReporter(&progressReporter{out: out, colorize: colorize}),
	}
	if cfg.Audio.Extract {
		options = append(options, batch.WithExtractor(audio.NewExtractor(cfg.FFmpegBinary(), logger)))
	}
	if store, err := history.Open(cfg); err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.String("path", cfg.Paths.HistoryDB),
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in `vidscribe history`"),
		)
	} else {
		defer store.Close()
		options = append(options, batch.WithRecorder(store))
	}

	runner := batch.NewRunner(eng, writer, batch.Options{
		Resume:      cfg.Output.Resume,
		Extract:     cfg.Audio.Extract,
		Subtitles:   cfg.Output.Subtitles,
		SampleRate:  cfg.Audio.SampleRate,
		ItemTimeout: time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
	}, options...)

	if err := notifier.NotifyBatchStarted(ctx, len(items), cfg.Paths.OutputDir); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed", logging.Error(err))
	}
	summary := runner.Run(ctx, items)
	// The run context may already be cancelled; the completion notice still goes out.
	if err := notifier.NotifyBatchCompleted(context.WithoutCancel(ctx), summary); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed", logging.Error(err))
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, renderSummary(summary, colorize))
	return nil
}

type progressReporter struct {
	out      io.Writer
	colorize bool
}

func (p *progressReporter) ItemStarted(_ context.Context, progress batch.Progress, item batch.Item) {
	fmt.Fprintf(p.out, "[%d/%d] %s (%s)\n", progress.Index, progress.Total, item.Name, preflight.FormatBytes(uint64(max(item.SizeBytes, 0))))
}

func (p *progressReporter) ItemFinished(_ context.Context, _ batch.Progress, _ batch.Item, outcome batch.Outcome) {
	kind, message := describeOutcome(outcome)
	fmt.Fprintln(p.out, renderStatusLine(outcome.Kind.String(), kind, message, p.colorize))
	if outcome.Notice != "" && outcome.Kind != batch.Failed && outcome.Kind != batch.NoSpeech {
		fmt.Fprintln(p.out, renderStatusLine("notice", statusWarn, outcome.Notice, p.colorize))
	}
}

func describeOutcome(o batch.Outcome) (statusKind, string) {
	switch o.Kind {
	case batch.Succeeded:
		msg := fmt.Sprintf("%d words, %s audio", o.Words, formatSeconds(o.Duration))
		if o.Language != "" {
			msg += ", " + o.Language
		}
		return statusOK, fmt.Sprintf("%s in %s", msg, o.Elapsed.Round(time.Second))
	case batch.Skipped:
		return statusInfo, o.Reason
	case batch.NoSpeech:
		return statusWarn, o.Reason
	default:
		return statusError, o.Reason
	}
}

func renderSummary(s batch.Summary, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Summary", colorize) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		words, duration := "", ""
		if r.Outcome.Kind == batch.Succeeded {
			words = fmt.Sprintf("%d", r.Outcome.Words)
			duration = formatSeconds(r.Outcome.Duration)
		}
		rows = append(rows, []string{r.Item.Name, r.Outcome.Kind.String(), words, duration})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"File", "Outcome", "Words", "Audio"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		))
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "Total files: %d\n", s.Total)
	fmt.Fprintf(&b, "Succeeded: %d  Skipped: %d  Errored: %d\n", s.Counters.Succeeded, s.Counters.Skipped, s.Counters.Errored)
	fmt.Fprintf(&b, "Output: %s\n", s.OutputDir)
	if s.Cancelled {
		fmt.Fprintf(&b, "Cancelled after %d of %d files\n", s.Counters.Processed(), s.Total)
	}
	if notices := s.Notices(); len(notices) > 0 {
		b.WriteString("Notices:\n")
		for _, n := range notices {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	fmt.Fprintf(&b, "Run ID: %s\n", s.RunID)
	return b.String()
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
