package telemetrysim

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/mangacatch/internal/adapters/sensor"
	"github.com/okian/mangacatch/pkg/logger"
)

// Run sends synthetic players datagrams to config.Target until the
// configured duration elapses or ctx is canceled.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", config.Rate)
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting telemetry simulator",
		logger.String("target", config.Target),
		logger.Int("players", config.Players),
		logger.Int("rate", config.Rate),
		logger.Duration("duration", config.Duration),
		logger.String("capture", config.CaptureFile))

	if config.BaseURL != "" {
		if err := checkServiceHealth(ctx, config); err != nil {
			return nil, fmt.Errorf("engine health check failed: %w", err)
		}
	}

	raddr, err := net.ResolveUDPAddr("udp", config.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial target: %w", err)
	}
	defer conn.Close()

	var capture *CaptureWriter
	if config.CaptureFile != "" {
		f, err := createCaptureFile(config.CaptureFile)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Get().Error(context.Background(), "failed to close capture", logger.Error(err))
			}
		}()
		local, _ := conn.LocalAddr().(*net.UDPAddr)
		capture, err = NewCaptureWriter(f, local, raddr)
		if err != nil {
			return nil, err
		}
	}

	if err := send(ctx, config, conn, capture, stats); err != nil {
		return nil, err
	}

	if config.BaseURL != "" {
		verifyState(ctx, config)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)
	return stats, nil
}

func send(ctx context.Context, config *Config, conn *net.UDPConn, capture *CaptureWriter, stats *Stats) error {
	gen := NewGenerator(config.Players, config.Seed)
	period := time.Second / time.Duration(config.Rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var (
		deadline   <-chan time.Time
		lastReport = time.Now()
	)
	if config.Duration > 0 {
		t := time.NewTimer(config.Duration)
		defer t.Stop()
		deadline = t.C
	}

	start := time.Now()
	for frame := 1; ; frame++ {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case now := <-ticker.C:
			payload, err := sensor.EncodePlayers(frame, gen.At(now.Sub(start).Seconds()))
			if err != nil {
				return fmt.Errorf("encode frame %d: %w", frame, err)
			}
			if _, err := conn.Write(payload); err != nil {
				stats.DatagramsFailed++
				if config.Verbose {
					logger.Get().Warn(ctx, "send failed", logger.Int("frame", frame), logger.Error(err))
				}
				continue
			}
			stats.DatagramsSent++

			if capture != nil {
				if err := capture.Write(payload, now); err != nil {
					return err
				}
				stats.DatagramsCaptured++
			}

			if config.Verbose && time.Since(lastReport) >= progressEvery {
				lastReport = time.Now()
				logger.Get().Info(ctx, "progress",
					logger.Int("sent", stats.DatagramsSent),
					logger.Int("failed", stats.DatagramsFailed))
			}
		}
	}
}

// verifyState waits for the engine to settle and checks that it sees the
// simulated player count.
func verifyState(ctx context.Context, config *Config) {
	t := time.NewTimer(SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	s, err := fetchState(ctx, config)
	if err != nil {
		logger.Get().Warn(ctx, "state verification skipped", logger.Error(err))
		return
	}
	if s.PersonCount != config.Players {
		logger.Get().Warn(ctx, "engine person count differs",
			logger.Int("want", config.Players), logger.Int("got", s.PersonCount), logger.String("phase", s.Phase))
		return
	}
	logger.Get().Info(ctx, "engine sees every simulated player",
		logger.Int("players", s.PersonCount), logger.String("phase", s.Phase))
}

func createCaptureFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture: %w", err)
	}
	return f, nil
}

func displayFinalStats(stats *Stats) {
	var rate float64
	if stats.Duration > 0 {
		rate = float64(stats.DatagramsSent) / stats.Duration.Seconds()
	}
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("sent", stats.DatagramsSent),
		logger.Int("failed", stats.DatagramsFailed),
		logger.Int("captured", stats.DatagramsCaptured),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("datagramsPerSecond", rate))
}
