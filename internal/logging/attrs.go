package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error attaches err under the "error" key.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form accepted by slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// Triple returns the attributes identifying one evaluation triple. Flat
// layouts have no dataset, so the key is left out.
func Triple(dataset, model, audio string) []any {
	attrs := make([]Attr, 0, 3)
	if dataset != "" {
		attrs = append(attrs, String(FieldDataset, dataset))
	}
	attrs = append(attrs, String(FieldModel, model), String(FieldAudio, audio))
	return Args(attrs...)
}

// Event tags a warning with what happened, what it costs and what to do.
type Event struct {
	Type   string
	Impact string
	Hint   string
}

const (
	defaultImpact = "evaluation continued"
	defaultHint   = "check the log file for details"
)

// Warn logs msg tagged with ev. Empty impact and hint fall back to defaults so
// every warning carries all three fields.
func Warn(logger *slog.Logger, msg string, ev Event, attrs ...Attr) {
	if logger == nil {
		return
	}
	if ev.Impact == "" {
		ev.Impact = defaultImpact
	}
	if ev.Hint == "" {
		ev.Hint = defaultHint
	}
	tagged := append([]Attr{
		String(FieldEventType, ev.Type),
		String(FieldImpact, ev.Impact),
		String(FieldErrorHint, ev.Hint),
	}, attrs...)
	logger.Warn(msg, Args(tagged...)...)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards every record.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
