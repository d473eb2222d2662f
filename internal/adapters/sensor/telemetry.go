package sensor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

const (
	readTimeout    = 100 * time.Millisecond
	readBufferSize = 1 << 20
	maxDatagram    = 1500
)

// TelemetrySource listens for players datagrams on a UDP address.
type TelemetrySource struct {
	name    string
	addr    string
	factory UDPSocketFactory
	clock   func() time.Time
	log     logger.Logger

	mu    sync.Mutex
	local net.Addr
}

// TelemetryOption configures a TelemetrySource.
type TelemetryOption func(*TelemetrySource)

// WithSocketFactory replaces the socket factory, mainly for tests.
func WithSocketFactory(f UDPSocketFactory) TelemetryOption {
	return func(s *TelemetrySource) { s.factory = f }
}

// WithTelemetryClock sets the clock used to stamp frames.
func WithTelemetryClock(clock func() time.Time) TelemetryOption {
	return func(s *TelemetrySource) { s.clock = clock }
}

// NewTelemetrySource creates a source listening on addr, e.g. ":7000".
func NewTelemetrySource(addr string, opts ...TelemetryOption) *TelemetrySource {
	s := &TelemetrySource{
		name:    "telemetry",
		addr:    addr,
		factory: RealUDPSocketFactory{},
		clock:   time.Now,
		log:     logger.Get().Named("telemetry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *TelemetrySource) Name() string { return s.name }

// LocalAddr returns the bound address once Run has opened the socket.
func (s *TelemetrySource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Run implements Source.
func (s *TelemetrySource) Run(ctx context.Context, sink Sink) error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.addr, err)
	}
	conn, err := s.factory.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		s.log.Warn(ctx, "failed to set read buffer", logger.Error(err))
	}
	s.mu.Lock()
	s.local = conn.LocalAddr()
	s.mu.Unlock()
	s.log.Info(ctx, "telemetry listener started", logger.String("addr", conn.LocalAddr().String()))

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		frame, err := s.HandleDatagram(buf[:n])
		if err != nil {
			s.drop(ctx, err)
			continue
		}
		sink.Publish(frame)
	}
}

// HandleDatagram decodes one datagram into a frame. Every datagram that
// decodes is accepted; the frame counter is informational only. The
// returned error is always an *IngestError.
func (s *TelemetrySource) HandleDatagram(data []byte) (model.Frame, error) {
	pkt, err := DecodePlayers(data)
	if err != nil {
		reason := ReasonMalformed
		if errors.Is(err, ErrWrongAddr) {
			reason = ReasonAddress
		}
		return model.Frame{}, &IngestError{Source: s.name, Reason: reason, Err: err}
	}

	return PlayersFrame(s.name, pkt, s.clock()), nil
}

func (s *TelemetrySource) drop(ctx context.Context, err error) {
	var ie *IngestError
	reason := ReasonMalformed
	if errors.As(err, &ie) {
		reason = ie.Reason
	}
	metrics.RecordSensorDropped(s.name, reason)
	s.log.Debug(ctx, "datagram dropped", logger.String("reason", reason), logger.Error(err))
}

// PlayersFrame converts a decoded datagram into a frame. Telemetry is
// already tracked, so the person count is the number of non-empty entries
// and still needs debouncing by the consumer.
func PlayersFrame(source string, pkt Players, at time.Time) model.Frame {
	dets := make([]model.Detection, 0, len(pkt.Players))
	for _, p := range pkt.Players {
		dets = append(dets, model.Detection{ExternalID: p.ID, X: clamp01(p.X), Y: clamp01(p.Y)})
	}
	return model.Frame{
		Source:      source,
		At:          at,
		Detections:  dets,
		PersonCount: len(dets),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var _ Source = (*TelemetrySource)(nil)
