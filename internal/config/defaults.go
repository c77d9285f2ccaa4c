package config

const (
	defaultLogDir               = "~/.local/share/diareval/logs"
	defaultHistoryDB            = "~/.local/share/diareval/history.db"
	defaultMetrics              = "all"
	defaultCollarSeconds        = 0.0
	defaultWorkers              = 4
	defaultTripleTimeoutSeconds = 120
	defaultReportFormat         = "xlsx"
	defaultHighlightColor       = "#D9D9D9"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Evaluation: Evaluation{
			Metrics:              []string{defaultMetrics},
			Collar:               defaultCollarSeconds,
			Workers:              defaultWorkers,
			TripleTimeoutSeconds: defaultTripleTimeoutSeconds,
		},
		Report: Report{
			Format:         defaultReportFormat,
			HighlightColor: defaultHighlightColor,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
