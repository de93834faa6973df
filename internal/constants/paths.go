package constants

// Log file names.
const (
	// CLILogFileName is the name of the rotating log file.
	// This file is located in ~/.cadence/logs/cadence.log
	CLILogFileName = "cadence.log"

	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 5

	// LogMaxAgeDays is the number of days rotated log files are kept.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated log files.
	LogCompress = true
)

// RunLockName is the lock file held by `cadence run`, in the cadence home.
const RunLockName = "run.lock"

// Configuration file names.
const (
	// GlobalConfigName is the name of the global configuration file.
	// This file is located in the cadence home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the configuration file looked up in
	// the working directory.
	ProjectConfigName = "cadence.yaml"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "CADENCE"
)
