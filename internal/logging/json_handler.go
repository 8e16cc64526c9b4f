package logging

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
)

// jsonTimeLayout is RFC 3339 in UTC with milliseconds.
const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// newJSONHandler emits one object per record with keys ts, level, msg and,
// when addSource is set, a package-relative source location. Durations are
// written as seconds.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			if attr.Value.Kind() != slog.KindTime {
				return attr
			}
			return slog.String("ts", attr.Value.Time().UTC().Format(jsonTimeLayout))
		case slog.LevelKey:
			return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
		case slog.SourceKey:
			src, ok := attr.Value.Any().(*slog.Source)
			if !ok || src == nil {
				return attr
			}
			return slog.String(slog.SourceKey, shortSource(src))
		}
	}
	if attr.Value.Kind() == slog.KindDuration {
		seconds := attr.Value.Duration().Seconds()
		return slog.Float64(attr.Key, math.Round(seconds*1000)/1000)
	}
	return attr
}

func shortSource(src *slog.Source) string {
	dir := filepath.Base(filepath.Dir(src.File))
	return fmt.Sprintf("%s/%s:%d", dir, filepath.Base(src.File), src.Line)
}
