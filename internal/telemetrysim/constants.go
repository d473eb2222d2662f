package telemetrysim

import "time"

// HTTP status code constants.
const (
	StatusOK = 200
)

// Run defaults.
const (
	DefaultRate     = 60
	DefaultDuration = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
	// SettleDelay is how long the engine gets to debounce the new count
	// before the simulator reads its state back.
	SettleDelay = 2 * time.Second
)

// Capture constants.
const (
	snapLen         = 65536
	progressEvery   = time.Second
	filePermission  = 0600
	dirPermission   = 0750
)
