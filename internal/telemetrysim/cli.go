package telemetrysim

import (
	"fmt"
	"os"

	"github.com/okian/mangacatch/pkg/logger"
)

// SetupLogging initialises the logger, at debug level when verbose.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return err
		}
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`MangaCatch Telemetry Simulator
==============================

Sends synthetic tracked-player datagrams to a telemetry listener and
optionally records them to a pcap file for later replay.

Usage:
  go run ./cmd/telemetry-sim [options]

Options:
  -target string
        UDP address of the telemetry listener (default "127.0.0.1:7000")
  -url string
        Base URL of the engine API; empty skips health and state checks
  -players int
        Number of simulated players, 0 to 3 (default 2)
  -rate int
        Datagrams per second (default 60)
  -duration duration
        How long to send (default 30s)
  -capture string
        Write every datagram to this pcap file
  -seed uint
        Movement seed (default 1)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Three players for a minute, checking the engine afterwards
  go run ./cmd/telemetry-sim -players 3 -duration 1m -url http://localhost:9080

  # Record a capture for MANGACATCH_SENSOR=replay
  go run ./cmd/telemetry-sim -capture session.pcap
`)
}
