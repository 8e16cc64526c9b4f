package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// msEpsilon absorbs binary float error such as 3661.234*1000 = 3661233.9999.
const msEpsilon = 1e-6

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Negative and NaN inputs
// render as zero.
func FormatTimestamp(seconds float64) string {
	ms := toMillis(seconds)
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1000
	ms -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

func toMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return int64(math.Floor(seconds*1000 + msEpsilon))
}

// ParseTimestamp parses HH:MM:SS,mmm (a period separator is also accepted)
// into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	normalized := strings.ReplaceAll(value, ".", ",")
	clock, fraction, ok := strings.Cut(normalized, ",")
	if !ok || fraction == "" || len(fraction) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(fraction + strings.Repeat("0", 3-len(fraction)))
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || secs < 0 || secs > 59 || millis < 0 {
		return 0, fmt.Errorf("timestamp out of range %q", value)
	}
	total := int64(hours)*3_600_000 + int64(minutes)*60_000 + int64(secs)*1000 + int64(millis)
	return float64(total) / 1000, nil
}
