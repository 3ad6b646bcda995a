package engine

import (
	"log/slog"

	"perseus/engine/cluster"
	"perseus/engine/configx"
	"perseus/engine/reader"
)

// Config is the public configuration surface for the Engine facade. The run
// spec carries the pipeline; the remaining fields wire the ambient stack and
// the external collaborators.
type Config struct {
	// Spec is the parsed run specification (seed, event limit, pipeline).
	Spec *configx.RunSpec

	// Seed overrides Spec.Seed when non-zero (CLI convenience).
	Seed int64

	// MaxEvents overrides Spec.MaxEvents when non-zero; 0 means all input.
	MaxEvents int

	// MetricsEnabled toggles the metrics provider; MetricsBackend selects
	// the implementation:
	//   "prom" (default) - built-in Prometheus registry
	//   "otel"           - OpenTelemetry bridge
	//   "noop"           - explicit no-op
	// Unknown values fall back to the default.
	MetricsEnabled bool
	MetricsBackend string

	// TracingEnabled turns on run/event span IDs for log correlation.
	TracingEnabled bool

	// Logger is the base structured logger; slog.Default when nil.
	Logger *slog.Logger

	// Clusterer is the jet clustering engine; the native sequential
	// recombination implementation when nil.
	Clusterer cluster.Clusterer

	// PileUp supplies minimum-bias particles to a configured PileUpMerger.
	PileUp reader.PileUpSampler
}

// Defaults returns a Config with reasonable defaults and an empty run spec.
func Defaults() Config {
	return Config{
		Spec:           &configx.RunSpec{Seed: 1},
		MetricsEnabled: false,
		MetricsBackend: "prom",
		TracingEnabled: true,
	}
}
