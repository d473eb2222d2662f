package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/mangacatch/internal/telemetrysim"
)

func main() {
	var (
		target   = flag.String("target", "127.0.0.1:7000", "UDP address of the telemetry listener")
		baseURL  = flag.String("url", "", "Base URL of the engine API; empty skips HTTP checks")
		players  = flag.Int("players", 2, "Number of simulated players (0..3)")
		rate     = flag.Int("rate", telemetrysim.DefaultRate, "Datagrams per second")
		duration = flag.Duration("duration", telemetrysim.DefaultDuration, "How long to send")
		capture  = flag.String("capture", "", "Write every datagram to this pcap file")
		timeout  = flag.Duration("timeout", telemetrysim.DefaultTimeout, "HTTP request timeout")
		seed     = flag.Uint64("seed", 1, "Movement seed")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		telemetrysim.ShowHelp()
		return
	}

	if err := telemetrysim.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := &telemetrysim.Config{
		Target:      *target,
		BaseURL:     *baseURL,
		Players:     *players,
		Rate:        *rate,
		Duration:    *duration,
		CaptureFile: *capture,
		Timeout:     *timeout,
		Seed:        *seed,
		Verbose:     *verbose,
	}

	if _, err := telemetrysim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
