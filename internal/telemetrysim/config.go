// Package telemetrysim drives a telemetry listener with synthetic players.
package telemetrysim

import "time"

// Config holds configuration for a simulator run.
type Config struct {
	Target      string        // UDP address of the telemetry listener
	BaseURL     string        // Base URL of the engine HTTP API; empty skips HTTP checks
	Players     int           // Number of simulated players (0..3)
	Rate        int           // Datagrams per second
	Duration    time.Duration // How long to send
	CaptureFile string        // Optional pcap file receiving every sent datagram
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Movement seed
	Verbose     bool          // Enable verbose logging
}

// State is the subset of the engine snapshot the simulator checks.
type State struct {
	Tick        uint64 `json:"tick"`
	Phase       string `json:"phase"`
	PersonCount int    `json:"person_count"`
	Score       int    `json:"score"`
}

// Stats holds run statistics.
type Stats struct {
	DatagramsSent     int
	DatagramsFailed   int
	DatagramsCaptured int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
