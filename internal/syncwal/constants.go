package syncwal

const (
	// ManifestVersion is the current on-disk manifest schema version.
	ManifestVersion = 1

	DefaultAppDir = ".syncwal"
	DefaultLogDir = "logs"
)

// Log file defaults
const (
	DefaultLogFileName   = "syncwal.log"
	DefaultLogMaxSize    = 100
	DefaultLogMaxBackups = 3
	DefaultLogLevel      = "info"
)

// Compaction planning defaults used by the compact tool.
const (
	// AutoCompactKeepMin is the floor on retained entries for the auto strategy.
	AutoCompactKeepMin = 10_000
	// AggressiveCompactKeep is the number of trailing entries the aggressive
	// strategy retains.
	AggressiveCompactKeep = 1_000
)
