package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input roots and output locations.
type Paths struct {
	HypothesesDir string `toml:"hypotheses_dir"`
	ReferenceDir  string `toml:"reference_dir"`
	// OutputPath is the report file. Empty means {hypotheses_dir}/../metrics/metrics.xlsx.
	OutputPath string `toml:"output_path"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
}

// Evaluation contains metric selection and scoring parameters.
type Evaluation struct {
	// Metrics lists metric identifiers or aliases; "all" expands to the catalog.
	Metrics []string `toml:"metrics"`
	// Collar is the boundary tolerance in seconds.
	Collar               float64 `toml:"collar"`
	SkipOverlap          bool    `toml:"skip_overlap"`
	Workers              int     `toml:"workers"`
	TripleTimeoutSeconds int     `toml:"triple_timeout_seconds"`
	Identification       bool    `toml:"identification"`
	// IdentificationMapping maps hypothesis labels to reference labels.
	IdentificationMapping map[string]string `toml:"identification_mapping"`
}

// Report contains output file settings.
type Report struct {
	Format         string `toml:"format"`
	HighlightColor string `toml:"highlight_color"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for diareval.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Evaluation Evaluation `toml:"evaluation"`
	Report     Report     `toml:"report"`
	Logging    Logging    `toml:"logging"`
}

const (
	defaultConfigPath  = "~/.config/diareval/config.toml"
	projectConfigName  = "diareval.toml"
	envHypothesesDir   = "DIAREVAL_HYPOTHESES_DIR"
	envReferenceDir    = "DIAREVAL_REFERENCE_DIR"
	collarResolution   = time.Millisecond
	maxTripleTimeout   = 24 * 60 * 60
	maxHighlightLength = len("#RRGGBB")
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the history database parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CollarDuration converts the configured collar to a duration, rounded to
// the millisecond.
func (c *Config) CollarDuration() time.Duration {
	return SecondsToDuration(c.Evaluation.Collar)
}

// TripleTimeout is the per-triple evaluation budget.
func (c *Config) TripleTimeout() time.Duration {
	return time.Duration(c.Evaluation.TripleTimeoutSeconds) * time.Second
}

// MetricList renders the configured metrics as a comma-separated list.
func (c *Config) MetricList() string {
	return strings.Join(c.Evaluation.Metrics, ",")
}

// SecondsToDuration converts fractional seconds to a duration rounded to the
// millisecond.
func SecondsToDuration(seconds float64) time.Duration {
	ms := math.Round(seconds * float64(time.Second/collarResolution))
	return time.Duration(ms) * collarResolution
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
