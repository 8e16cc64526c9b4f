package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vidscribe/internal/transcript"
)

const arrow = " --> "

// Cue is one parsed SRT block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Render formats segments as SRT blocks "i\nstart --> end\ntext\n\n" with
// consecutive 1-based indices. A segment with empty text still gets a block.
func Render(segments []transcript.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(seg.Start))
		b.WriteString(arrow)
		b.WriteString(FormatTimestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Parse reads SRT blocks. CRLF line endings and a leading byte-order mark are
// tolerated. Multi-line cue text is joined with newlines.
func Parse(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues    []Cue
		block   []string
		lineNum int
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		cue, err := parseBlock(block)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		cues = append(cues, cue)
		block = block[:0]
		return nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cues, nil
}

func parseBlock(lines []string) (Cue, error) {
	if len(lines) < 2 {
		return Cue{}, fmt.Errorf("incomplete cue %q", strings.Join(lines, " "))
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Cue{}, fmt.Errorf("invalid cue index %q", lines[0])
	}
	startText, endText, ok := strings.Cut(lines[1], "-->")
	if !ok {
		return Cue{}, fmt.Errorf("invalid cue timing %q", lines[1])
	}
	start, err := ParseTimestamp(startText)
	if err != nil {
		return Cue{}, err
	}
	end, err := ParseTimestamp(endText)
	if err != nil {
		return Cue{}, err
	}
	if end < start {
		return Cue{}, fmt.Errorf("cue %d ends before it starts", index)
	}
	return Cue{
		Index: index,
		Start: start,
		End:   end,
		Text:  strings.Join(lines[2:], "\n"),
	}, nil
}
