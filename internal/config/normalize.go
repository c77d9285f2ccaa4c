package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEvaluation()
	c.normalizeReport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.HypothesesDir) == "" {
		if value, ok := os.LookupEnv(envHypothesesDir); ok {
			c.Paths.HypothesesDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.ReferenceDir) == "" {
		if value, ok := os.LookupEnv(envReferenceDir); ok {
			c.Paths.ReferenceDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"paths.hypotheses_dir", &c.Paths.HypothesesDir},
		{"paths.reference_dir", &c.Paths.ReferenceDir},
		{"paths.output_path", &c.Paths.OutputPath},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.history_db", &c.Paths.HistoryDB},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeEvaluation() {
	metrics := make([]string, 0, len(c.Evaluation.Metrics))
	for _, entry := range c.Evaluation.Metrics {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				metrics = append(metrics, part)
			}
		}
	}
	if len(metrics) == 0 {
		metrics = []string{defaultMetrics}
	}
	c.Evaluation.Metrics = metrics

	if len(c.Evaluation.IdentificationMapping) > 0 {
		mapping := make(map[string]string, len(c.Evaluation.IdentificationMapping))
		for hyp, ref := range c.Evaluation.IdentificationMapping {
			mapping[strings.TrimSpace(hyp)] = strings.TrimSpace(ref)
		}
		c.Evaluation.IdentificationMapping = mapping
	}
}

func (c *Config) normalizeReport() {
	c.Report.Format = strings.ToLower(strings.TrimSpace(c.Report.Format))
	if c.Report.Format == "" {
		c.Report.Format = defaultReportFormat
	}
	c.Report.HighlightColor = strings.ToUpper(strings.TrimSpace(c.Report.HighlightColor))
	if c.Report.HighlightColor == "" {
		c.Report.HighlightColor = defaultHighlightColor
	}
	if !strings.HasPrefix(c.Report.HighlightColor, "#") {
		c.Report.HighlightColor = "#" + c.Report.HighlightColor
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
