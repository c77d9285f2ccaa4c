package discovery

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Family is the diarization framework that produced a hypothesis. It is
// inferred from the model configuration folder name, which is a naming
// convention of the pipelines and not metadata stored anywhere else.
type Family string

const (
	FamilyPyannote Family = "pyannote"
	FamilyNeMo     Family = "nemo"
	FamilyUnknown  Family = "unknown"
)

var familyPrefixes = []Family{FamilyPyannote, FamilyNeMo}

// InferFamily matches the case-insensitive folder prefix against the known
// frameworks and falls back to FamilyUnknown.
func InferFamily(model string) Family {
	lower := strings.ToLower(strings.TrimSpace(model))
	for _, f := range familyPrefixes {
		if strings.HasPrefix(lower, string(f)) {
			return f
		}
	}
	return FamilyUnknown
}

// Known reports whether the family is a recognized framework.
func (f Family) Known() bool {
	return f == FamilyPyannote || f == FamilyNeMo
}

// LogName is the upper-cased prefix of the framework's execution-time log.
func (f Family) LogName() string {
	return strings.ToUpper(string(f))
}

// DisplayName is the human readable framework name.
func (f Family) DisplayName() string {
	switch f {
	case FamilyNeMo:
		return "NeMo"
	case FamilyPyannote:
		return "Pyannote"
	default:
		return cases.Title(language.Und).String(string(f))
	}
}

const (
	pipelineSeparator = "__"
	modelSeparator    = "+"
)

// Configuration is a model configuration folder name split into its parts,
// for example "NeMo__vad_multilingual_marblenet+titanet_large".
type Configuration struct {
	Family   Family
	Pipeline string
	First    string
	Second   string
}

// Decompose splits a model configuration name on "__" (pipeline and models)
// and "+" (first and second model). Missing parts stay empty.
func Decompose(model string) Configuration {
	cfg := Configuration{Family: InferFamily(model)}
	pipeline, models, found := strings.Cut(model, pipelineSeparator)
	cfg.Pipeline = pipeline
	if !found {
		return cfg
	}
	first, second, _ := strings.Cut(models, modelSeparator)
	cfg.First = first
	cfg.Second = second
	return cfg
}
