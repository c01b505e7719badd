package ir

// Version constants for the canonical encoding and the engine.
const (
	// IRVersion is the canonical encoding version. Bumping it changes every digest.
	IRVersion = "1"

	// EngineVersion is the vquery engine version.
	EngineVersion = "0.1.0"
)
