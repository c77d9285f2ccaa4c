// Package exectime reads the append-only execution-time logs written by the
// diarization pipelines and derives real-time factors from them.
//
// Each line has the shape
//
//	{audio} {model_configuration} {dataset} {elapsed_seconds} {audio_seconds}
//
// and one log exists per pipeline at {hypotheses_root}/{PIPELINE}_exec_time.txt.
package exectime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrLogUnavailable reports a missing or unreadable execution-time log.
var ErrLogUnavailable = errors.New("execution log unavailable")

const (
	logSuffix = "_exec_time.txt"
	minFields = 5
)

// Path returns the log location for pipeline under root.
func Path(root, pipeline string) string {
	return filepath.Join(root, strings.ToUpper(pipeline)+logSuffix)
}

// Key selects the log line of one evaluation.
type Key struct {
	Audio   string
	Model   string
	Dataset string
}

// Record is one parsed log line.
type Record struct {
	Audio         string
	Model         string
	Dataset       string
	Elapsed       float64
	AudioDuration float64
}

// Ratio is elapsed time divided by audio duration.
func (r Record) Ratio() (float64, bool) {
	if r.AudioDuration <= 0 {
		return 0, false
	}
	return r.Elapsed / r.AudioDuration, true
}

func (r Record) matches(k Key) bool {
	return audioStem(r.Audio) == audioStem(k.Audio) && r.Model == k.Model && r.Dataset == k.Dataset
}

// audioExtensions are the suffixes pipelines put on the audio field. Any
// other dotted suffix is part of the audio name.
var audioExtensions = map[string]bool{
	".rttm": true,
	".wav":  true,
	".flac": true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
}

// audioStem drops a known annotation or audio extension so "a.rttm", "a.wav"
// and "a" compare equal while "a.2024" stays distinct.
func audioStem(name string) string {
	ext := filepath.Ext(name)
	if audioExtensions[strings.ToLower(ext)] {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// Log is the parsed content of one execution-time log.
type Log struct {
	Records []Record
	// Skipped counts lines that could not be parsed.
	Skipped int
}

// Parse reads a log. Malformed lines are counted and skipped.
func Parse(r io.Reader) (*Log, error) {
	log := &Log{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < minFields {
			log.Skipped++
			continue
		}
		n := len(fields)
		elapsed, errElapsed := strconv.ParseFloat(fields[n-2], 64)
		duration, errDuration := strconv.ParseFloat(fields[n-1], 64)
		if errElapsed != nil || errDuration != nil {
			log.Skipped++
			continue
		}
		log.Records = append(log.Records, Record{
			Audio:         fields[0],
			Model:         fields[1],
			Dataset:       strings.Join(fields[2:n-2], " "),
			Elapsed:       elapsed,
			AudioDuration: duration,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return log, nil
}

// Open parses the log at path. Any failure wraps ErrLogUnavailable.
func Open(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
	}
	defer f.Close()
	log, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLogUnavailable, path, err)
	}
	return log, nil
}

// Find returns the last record matching k. The log is append-only, so later
// lines supersede earlier runs of the same evaluation.
func (l *Log) Find(k Key) (Record, bool) {
	var (
		found  bool
		record Record
	)
	for _, r := range l.Records {
		if r.matches(k) {
			record = r
			found = true
		}
	}
	return record, found
}

// Ratio returns the real-time factor for k. The second result is false when
// no line matches or the logged audio duration is not positive.
func (l *Log) Ratio(k Key) (float64, bool) {
	r, ok := l.Find(k)
	if !ok {
		return 0, false
	}
	return r.Ratio()
}

type cacheEntry struct {
	once sync.Once
	log  *Log
	err  error
}

// Cache loads each pipeline log at most once and is safe for concurrent use.
type Cache struct {
	root    string
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache returns a cache of the logs under root.
func NewCache(root string) *Cache {
	return &Cache{root: root, entries: make(map[string]*cacheEntry)}
}

// Log returns the parsed log of pipeline. The bool result is true only for
// the first caller to observe a given load, so callers can log failures once.
func (c *Cache) Log(pipeline string) (*Log, bool, error) {
	key := strings.ToUpper(pipeline)
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	first := false
	entry.once.Do(func() {
		first = true
		entry.log, entry.err = Open(Path(c.root, key))
	})
	return entry.log, first, entry.err
}
