package ir

// Version constants for the audit log schema and engine.
const (
	// EventVersion is the audit event schema version.
	EventVersion = "1"

	// EngineVersion is the tokenstream engine version.
	EngineVersion = "0.1.0"
)
