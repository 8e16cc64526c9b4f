package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"vidscribe/internal/batch"
	"vidscribe/internal/engine"
	"vidscribe/internal/output"
	"vidscribe/internal/services"
	"vidscribe/internal/testsupport"
	"vidscribe/internal/transcript"
)

type fakeTranscriber struct {
	segments map[string][]transcript.Segment
	errs     map[string]error
	panics   map[string]bool
	block    bool
	inputs   []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, input string) (*transcript.Stream, engine.Info, error) {
	f.inputs = append(f.inputs, input)
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if f.panics[base] {
		panic("decoder crashed")
	}
	if f.block {
		<-ctx.Done()
		return nil, engine.Info{}, ctx.Err()
	}
	if err := f.errs[base]; err != nil {
		return nil, engine.Info{}, err
	}
	return transcript.FromSegments(f.segments[base]), engine.Info{Language: "en", Duration: 99}, nil
}

type fakeExtractor struct {
	ok    bool
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _, target string, _ int) bool {
	f.calls++
	if !f.ok {
		return false
	}
	return os.WriteFile(target, []byte("RIFF"), 0o644) == nil
}

type recorder struct {
	started  int
	items    []batch.Outcome
	finished *batch.Summary
	err      error
}

func (r *recorder) RunStarted(ctx context.Context, _ batch.RunInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.started++
	return r.err
}

func (r *recorder) ItemRecorded(ctx context.Context, _ string, _ batch.Item, o batch.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.items = append(r.items, o)
	return r.err
}

func (r *recorder) RunFinished(ctx context.Context, s batch.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.finished = &s
	return r.err
}

type flakyMirror struct {
	err      error
	uploaded []string
}

func (m *flakyMirror) Upload(_ context.Context, path string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploaded = append(m.uploaded, path)
	return filepath.Base(path), nil
}

type cancelReporter struct {
	cancel context.CancelFunc
}

func (cancelReporter) ItemStarted(context.Context, batch.Progress, batch.Item) {}

func (c cancelReporter) ItemFinished(context.Context, batch.Progress, batch.Item, batch.Outcome) {
	c.cancel()
}

func speech(texts ...string) []transcript.Segment {
	segs := make([]transcript.Segment, 0, len(texts))
	for i, text := range texts {
		segs = append(segs, transcript.Segment{Start: float64(i) * 2, End: float64(i)*2 + 1.5, Text: text})
	}
	return segs
}

type fixture struct {
	inputDir  string
	outputDir string
	writer    *output.Writer
}

func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	testsupport.WriteVideos(t, cfg.Paths.InputDir, names...)
	return fixture{
		inputDir:  cfg.Paths.InputDir,
		outputDir: cfg.Paths.OutputDir,
		writer:    output.New(cfg.Paths.OutputDir, nil),
	}
}

func (f fixture) discover(t *testing.T) []batch.Item {
	t.Helper()
	items, err := batch.Discover(f.inputDir, []string{".mp4", ".mov", ".mkv"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return items
}

func assertNoWAV(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no WAV files, found %v", matches)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteVideos(t, dir, "b.MKV", "a.mp4", "notes.txt", "c.Mov")
	if err := os.Mkdir(filepath.Join(dir, "folder.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	items, err := batch.Discover(dir, []string{".mp4", "mkv", ".MOV"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	if !slices.Equal(names, []string{"a.mp4", "b.MKV", "c.Mov"}) {
		t.Fatalf("unexpected discovery order %v", names)
	}
	if items[1].Base != "b" || items[1].SizeBytes != 1024 || items[1].Path != filepath.Join(dir, "b.MKV") {
		t.Fatalf("unexpected item %+v", items[1])
	}

	if _, err := batch.Discover(filepath.Join(dir, "missing"), []string{".mp4"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing dir, got %v", err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, "talk.mp4", "silence.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{
		"talk": speech(" Hello world. ", "This is a test."),
	}}
	extractor := &fakeExtractor{ok: true}
	rec := &recorder{}

	runner := batch.NewRunner(transcriber, f.writer,
		batch.Options{Resume: true, Extract: true, SampleRate: 16000},
		batch.WithExtractor(extractor),
		batch.WithRecorder(rec),
		batch.WithRunID("run-1"),
	)
	summary := runner.Run(context.Background(), f.discover(t))

	want := batch.Counters{Succeeded: 1, Skipped: 0, Errored: 1}
	if summary.Counters != want {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if summary.RunID != "run-1" || summary.Total != 2 || summary.OutputDir != f.outputDir {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := testsupport.ReadFile(t, filepath.Join(f.outputDir, "talk.txt")); got != "Hello world. This is a test." {
		t.Fatalf("unexpected transcript %q", got)
	}
	testsupport.AssertMissing(t, filepath.Join(f.outputDir, "silence.txt"))
	assertNoWAV(t, f.outputDir)

	// Discovery order is by name: silence.mp4 precedes talk.mp4.
	if summary.Results[0].Outcome.Kind != batch.NoSpeech || !errors.Is(summary.Results[0].Outcome.Err, services.ErrNoSpeech) {
		t.Fatalf("expected no-speech outcome, got %+v", summary.Results[0].Outcome)
	}
	talk := summary.Results[1].Outcome
	if talk.Kind != batch.Succeeded || talk.Words != 6 || talk.Duration != 3.5 || !talk.UsedAudio || talk.Language != "en" {
		t.Fatalf("unexpected success outcome %+v", talk)
	}
	if len(summary.Notices()) != 1 || !strings.HasPrefix(summary.Notices()[0], "silence.mp4: ") {
		t.Fatalf("unexpected notices %v", summary.Notices())
	}

	if rec.started != 1 || len(rec.items) != 2 || rec.finished == nil || rec.finished.Counters != want {
		t.Fatalf("recorder not driven as expected: %+v", rec)
	}
	if extractor.calls != 2 {
		t.Fatalf("expected extraction per item, got %d", extractor.calls)
	}
}

func TestRunResumeSkipsExistingTranscript(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	existing := filepath.Join(f.outputDir, "talk.txt")
	if err := os.WriteFile(existing, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("new text")}}
	extractor := &fakeExtractor{ok: true}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{Resume: true, Extract: true}, batch.WithExtractor(extractor)).
		Run(context.Background(), f.discover(t))

	if summary.Counters != (batch.Counters{Skipped: 1}) {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if len(transcriber.inputs) != 0 || extractor.calls != 0 {
		t.Fatalf("expected no engine or extractor calls, got %d/%d", len(transcriber.inputs), extractor.calls)
	}
	if got := testsupport.ReadFile(t, existing); got != "previous run\n" {
		t.Fatalf("transcript modified: %q", got)
	}
}

func TestRunWithoutResumeOverwrites(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	existing := filepath.Join(f.outputDir, "talk.txt")
	if err := os.WriteFile(existing, []byte("previous run"), 0o644); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("new text")}}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{}).Run(context.Background(), f.discover(t))
	if summary.Counters.Succeeded != 1 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if got := testsupport.ReadFile(t, existing); got != "new text" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestRunExtractionFallbackUsesVideo(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("fallback works")}}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{Extract: true},
		batch.WithExtractor(&fakeExtractor{ok: false})).Run(context.Background(), f.discover(t))

	outcome := summary.Results[0].Outcome
	if outcome.Kind != batch.Succeeded || outcome.UsedAudio {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Notice == "" {
		t.Fatal("expected fallback notice")
	}
	if len(transcriber.inputs) != 1 || transcriber.inputs[0] != filepath.Join(f.inputDir, "talk.mp4") {
		t.Fatalf("expected original video as input, got %v", transcriber.inputs)
	}
	if got := testsupport.ReadFile(t, filepath.Join(f.outputDir, "talk.txt")); got != "fallback works" {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestRunCleansAudioOnEveryTerminalPath(t *testing.T) {
	f := newFixture(t, "crash.mp4", "fails.mp4", "ok.mp4", "quiet.mp4", "unordered.mp4")
	transcriber := &fakeTranscriber{
		segments: map[string][]transcript.Segment{
			"ok": speech("fine"),
			"unordered": {
				{Start: 5, End: 6, Text: "late"},
				{Start: 1, End: 2, Text: "early"},
			},
		},
		errs:   map[string]error{"fails": services.Wrap(services.ErrExternalTool, "transcribe", "whisper-ctranslate2", "exit 1", nil)},
		panics: map[string]bool{"crash": true},
	}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{Extract: true},
		batch.WithExtractor(&fakeExtractor{ok: true})).Run(context.Background(), f.discover(t))

	if summary.Counters != (batch.Counters{Succeeded: 1, Errored: 4}) {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	kinds := make(map[string]batch.Kind)
	for _, r := range summary.Results {
		kinds[r.Item.Base] = r.Outcome.Kind
	}
	if kinds["crash"] != batch.Failed || kinds["fails"] != batch.Failed || kinds["quiet"] != batch.NoSpeech || kinds["unordered"] != batch.Failed {
		t.Fatalf("unexpected outcome kinds %v", kinds)
	}
	if !strings.Contains(summary.Results[0].Outcome.Reason, "panic") {
		t.Fatalf("expected panic reason, got %q", summary.Results[0].Outcome.Reason)
	}
	assertNoWAV(t, f.outputDir)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	f := newFixture(t, "a.mp4", "b.mp4", "c.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"a": speech("x"), "b": speech("y")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{},
		batch.WithReporter(cancelReporter{cancel: cancel}),
		batch.WithRecorder(rec)).Run(ctx, f.discover(t))

	if !summary.Cancelled {
		t.Fatal("expected cancelled summary")
	}
	if len(summary.Results) != 1 || summary.Counters.Processed() != 1 || summary.Total != 3 {
		t.Fatalf("expected one processed item, got %+v", summary)
	}
	if len(rec.items) != 1 {
		t.Fatalf("expected the finished item to be recorded after cancel, got %d", len(rec.items))
	}
	if rec.finished == nil || !rec.finished.Cancelled {
		t.Fatalf("expected cancelled run to be recorded as finished, got %+v", rec.finished)
	}
}

func TestRunRetriesItemAfterRequiredMirrorFailure(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("hello")}}
	mirror := &flakyMirror{err: services.Wrap(services.ErrExternalTool, "mirror", "put object", "", errors.New("503"))}
	writer := output.New(f.outputDir, mirror, output.WithMirrorRequired(true))
	opts := batch.Options{Resume: true}

	first := batch.NewRunner(transcriber, writer, opts).Run(context.Background(), f.discover(t))
	if first.Counters != (batch.Counters{Errored: 1}) {
		t.Fatalf("expected mirror failure to fail the item, got %+v", first.Counters)
	}
	testsupport.AssertMissing(t, filepath.Join(f.outputDir, "talk.txt"))

	mirror.err = nil
	second := batch.NewRunner(transcriber, writer, opts).Run(context.Background(), f.discover(t))
	if second.Counters != (batch.Counters{Succeeded: 1}) {
		t.Fatalf("expected resumed run to retry the item, got %+v", second.Counters)
	}
	if len(mirror.uploaded) != 1 {
		t.Fatalf("expected one upload on retry, got %v", mirror.uploaded)
	}
}

func TestRunItemTimeout(t *testing.T) {
	f := newFixture(t, "slow.mp4")
	summary := batch.NewRunner(&fakeTranscriber{block: true}, f.writer,
		batch.Options{ItemTimeout: 20 * time.Millisecond}).Run(context.Background(), f.discover(t))

	outcome := summary.Results[0].Outcome
	if outcome.Kind != batch.Failed || !strings.HasPrefix(outcome.Reason, "timed out") {
		t.Fatalf("expected timeout failure, got %+v", outcome)
	}
}

type failingSubtitles struct{ *output.Writer }

func (failingSubtitles) WriteSubtitles(context.Context, string, []transcript.Segment) (string, error) {
	return "", errors.New("disk full")
}

func TestRunSubtitles(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("one", "two")}}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{Subtitles: true}).Run(context.Background(), f.discover(t))
	outcome := summary.Results[0].Outcome
	if outcome.SubtitlePath != filepath.Join(f.outputDir, "talk.srt") {
		t.Fatalf("unexpected subtitle path %q", outcome.SubtitlePath)
	}
	srt := testsupport.ReadFile(t, outcome.SubtitlePath)
	if !strings.HasPrefix(srt, "1\n00:00:00,000 --> 00:00:01,500\none\n\n2\n") {
		t.Fatalf("unexpected srt:\n%s", srt)
	}

	g := newFixture(t, "talk.mp4")
	summary = batch.NewRunner(transcriber, failingSubtitles{g.writer}, batch.Options{Subtitles: true}).Run(context.Background(), g.discover(t))
	if summary.Results[0].Outcome.Kind != batch.Failed {
		t.Fatalf("expected failure when subtitles cannot be written, got %+v", summary.Results[0].Outcome)
	}
	testsupport.AssertMissing(t, filepath.Join(g.outputDir, "talk.txt"))
}

func TestRecorderErrorsDoNotChangeOutcomes(t *testing.T) {
	f := newFixture(t, "talk.mp4")
	transcriber := &fakeTranscriber{segments: map[string][]transcript.Segment{"talk": speech("hello")}}
	rec := &recorder{err: errors.New("database is locked")}

	summary := batch.NewRunner(transcriber, f.writer, batch.Options{}, batch.WithRecorder(rec)).Run(context.Background(), f.discover(t))
	if summary.Counters.Succeeded != 1 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
}

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()
	first, err := batch.AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := batch.AcquireLock(dir); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected second lock to fail, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := batch.AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected lock after release: %v", err)
	}
	_ = second.Release()
}

func TestKindRoundTrip(t *testing.T) {
	for _, kind := range []batch.Kind{batch.Succeeded, batch.Skipped, batch.NoSpeech, batch.Failed} {
		parsed, ok := batch.ParseKind(kind.String())
		if !ok || parsed != kind {
			t.Fatalf("ParseKind(%q) = %v, %v", kind.String(), parsed, ok)
		}
	}
	if _, ok := batch.ParseKind("bogus"); ok {
		t.Fatal("expected unknown kind to fail")
	}
}
