// Package rttm reads and writes Rich Transcription Time-Marked files.
//
// Only the START, DUR and SPEAKER columns carry meaning for evaluation; the
// remaining columns must be present but are otherwise ignored.
package rttm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"diareval/internal/annotation"
)

// ErrMalformedLine reports a record with too few fields or a non-numeric
// time field.
var ErrMalformedLine = errors.New("malformed rttm line")

const (
	minFields     = 8
	fieldStart    = 3
	fieldDuration = 4
	fieldSpeaker  = 7
)

// Parse reads every non-blank record from r into an annotation.
func Parse(r io.Reader, uri string) (*annotation.Annotation, error) {
	ann := annotation.New(uri)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < minFields {
			return nil, fmt.Errorf("%w: line %d has %d fields, want at least %d", ErrMalformedLine, lineNo, len(fields), minFields)
		}
		start, ok := parseUnits(fields[fieldStart])
		if !ok {
			return nil, fmt.Errorf("%w: line %d start %q", ErrMalformedLine, lineNo, fields[fieldStart])
		}
		duration, ok := parseUnits(fields[fieldDuration])
		if !ok {
			return nil, fmt.Errorf("%w: line %d duration %q", ErrMalformedLine, lineNo, fields[fieldDuration])
		}
		ann.Add(annotation.Interval{Start: start, End: start + duration}, fields[fieldSpeaker])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rttm: %w", err)
	}
	return ann, nil
}

// ParseFile opens and parses path. Open errors are returned unwrapped so
// callers can test them with errors.Is(err, fs.ErrNotExist).
func ParseFile(path, uri string) (*annotation.Annotation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	ann, err := Parse(file, uri)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ann, nil
}

// Write serializes ann as SPEAKER records. Times are written with two
// decimals so that a subsequent Parse yields the same centisecond intervals.
func Write(w io.Writer, ann *annotation.Annotation) error {
	uri := "<NA>"
	if ann != nil && strings.TrimSpace(ann.URI) != "" {
		uri = strings.Join(strings.Fields(ann.URI), "_")
	}
	bw := bufio.NewWriter(w)
	for _, seg := range ann.Segments() {
		if _, err := fmt.Fprintf(bw, "SPEAKER %s 1 %s %s <NA> <NA> %s <NA> <NA>\n",
			uri, formatUnits(seg.Start), formatUnits(seg.Duration()), seg.Label); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// parseUnits truncates a decimal seconds value to centiseconds. The value is
// parsed as an exact rational so "0.29" yields 29 rather than the 28 a
// float64 multiplication would give.
func parseUnits(value string) (int64, bool) {
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return 0, false
	}
	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return 0, false
	}
	r.Mul(r, big.NewRat(annotation.UnitsPerSecond, 1))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}

// formatUnits renders centiseconds as seconds without going through a float
// multiplication, so truncation on re-read is exact.
func formatUnits(units int64) string {
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/annotation.UnitsPerSecond, units%annotation.UnitsPerSecond)
}
