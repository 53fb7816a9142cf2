package config

import "time"

// Config carries every tunable the pipeline needs. It is built once in main
// and passed by value into each constructor; there is no package-level
// instance.
type Config struct {
	// Consumer pacing
	BatchSize    int           // max records drained per poll cycle
	BatchTimeout time.Duration // wall-clock budget per poll cycle
	PollInterval time.Duration // consumer re-arm cadence

	// Bounded structures
	MaxDisplayedLines  int // log ring capacity; oldest entries evicted
	MaxHistoryEntries  int
	QueueCapacity      int // buffered channel size between runner and consumer
	QueueThrottleDepth int // producer throttles above this many pending events
	ThrottleSleep      time.Duration

	// Process lifecycle
	ScanTimeout       time.Duration // last-resort guard against a wedged stream
	ReaderJoinTimeout time.Duration // bounded wait for stream readers after exit

	// Validation limits
	MaxPathLength int // Windows MAX_PATH

	// Artifact names, created under DataDir
	DataDir     string
	BaselineGen string // baseline scan line dump
	CompareGen  string // comparison scan line dump
	DiffGen     string // retained diff lines
	HistoryGen  string
	LogFile     string
}

// Default returns the stock configuration. DataDir is filled in by main
// (defaults to the executable's directory).
func Default() Config {
	return Config{
		BatchSize:    50,
		BatchTimeout: 25 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,

		MaxDisplayedLines:  3000,
		MaxHistoryEntries:  100,
		QueueCapacity:      2000,
		QueueThrottleDepth: 500,
		ThrottleSleep:      time.Millisecond,

		ScanTimeout:       300 * time.Second,
		ReaderJoinTimeout: 2 * time.Second,

		MaxPathLength: 260,

		BaselineGen: "scan_initial.txt",
		CompareGen:  "scan_compare.txt",
		DiffGen:     "scan_diff.txt",
		HistoryGen:  "scan_history.json",
		LogFile:     "accesschk_gui.log",
	}
}
