package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable. Input roots are not checked
// here; the evaluate command verifies them after flags are applied.
func (c *Config) Validate() error {
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	if err := c.validateReport(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEvaluation() error {
	collar := c.Evaluation.Collar
	if math.IsNaN(collar) || math.IsInf(collar, 0) {
		return errors.New("evaluation.collar must be a finite number of seconds")
	}
	if collar < 0 {
		return fmt.Errorf("evaluation.collar must be >= 0 (got %g)", collar)
	}
	if c.Evaluation.Workers <= 0 {
		return errors.New("evaluation.workers must be positive")
	}
	if c.Evaluation.TripleTimeoutSeconds <= 0 || c.Evaluation.TripleTimeoutSeconds > maxTripleTimeout {
		return fmt.Errorf("evaluation.triple_timeout_seconds must be between 1 and %d", maxTripleTimeout)
	}
	for hyp, ref := range c.Evaluation.IdentificationMapping {
		if hyp == "" || ref == "" {
			return errors.New("evaluation.identification_mapping entries must have non-empty labels")
		}
	}
	return nil
}

func (c *Config) validateReport() error {
	switch c.Report.Format {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("report.format must be xlsx or csv (got %q)", c.Report.Format)
	}
	color := c.Report.HighlightColor
	if len(color) != maxHighlightLength || strings.Trim(color[1:], "0123456789ABCDEF") != "" {
		return fmt.Errorf("report.highlight_color must look like #RRGGBB (got %q)", color)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
}
