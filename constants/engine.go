package constants

// EngineVersion participates in idempotence cache keys. Bump it whenever a
// behavioral change should invalidate previously cached decisions.
const EngineVersion = "1.4.0"

// Artifact schema versions. Every persisted artifact is stamped with one of
// these so downstream readers can dispatch on shape.
const (
	ExtractionSchemaVersion = "extraction.v2"
	ValidationSchemaVersion = "validation.v2"
	TraceSchemaVersion      = "trace.v1"
	FusionSchemaVersion     = "fusion.v1"
)
