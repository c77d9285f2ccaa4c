package rttm

import (
	"bytes"
	"errors"
	"io/fs"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"diareval/internal/annotation"
)

func TestParseUsesStartDurationAndSpeaker(t *testing.T) {
	input := strings.Join([]string{
		"SPEAKER audio1 1 0.00 5.00 <NA> <NA> spk_a <NA> <NA>",
		"",
		"SPEAKER audio1 1 4.29 1.015 <NA> <NA> spk_b <NA> <NA>",
		"   ",
	}, "\n")

	ann, err := Parse(strings.NewReader(input), "audio1")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	segs := ann.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Interval != (annotation.Interval{Start: 0, End: 500}) || segs[0].Label != "spk_a" {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Interval != (annotation.Interval{Start: 429, End: 530}) || segs[1].Label != "spk_b" {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "SPEAKER audio1 1 0.0 1.0 <NA> spk"},
		{"bad start", "SPEAKER audio1 1 abc 1.0 <NA> <NA> spk"},
		{"bad duration", "SPEAKER audio1 1 0.0 NaN <NA> <NA> spk"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input), "x")
			if !errors.Is(err, ErrMalformedLine) {
				t.Fatalf("expected ErrMalformedLine, got %v", err)
			}
		})
	}
}

func TestParseFileMissingIsNotExist(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.rttm"), "missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		ann := annotation.New("audio with spaces")
		for i := 0; i < 20; i++ {
			start := rng.Int63n(100000)
			ann.Add(annotation.Interval{Start: start, End: start + 1 + rng.Int63n(2000)}, string(rune('A'+rng.Intn(4))))
		}

		var buf bytes.Buffer
		if err := Write(&buf, ann); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
		again, err := Parse(&buf, ann.URI)
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if !ann.Equal(again) {
			t.Fatalf("round trip mismatch on trial %d:\n got %v\nwant %v", trial, again.Segments(), ann.Segments())
		}
	}
}

func TestParseUnitsIsExactForDecimalInput(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
	}{
		{"0.29", 29},
		{"1.239", 123},
		{"1e1", 1000},
		{"-0.05", -5},
	} {
		got, ok := parseUnits(tc.in)
		if !ok || got != tc.want {
			t.Fatalf("parseUnits(%q) = %d, %v; want %d", tc.in, got, ok, tc.want)
		}
	}
}
