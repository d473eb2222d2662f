package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// ReplaySource plays players datagrams back from a pcap capture, paced by
// the capture timestamps.
type ReplaySource struct {
	name  string
	path  string
	port  int
	speed float64
	loop  bool
	clock func() time.Time
	log   logger.Logger
}

// ReplayOption configures a ReplaySource.
type ReplayOption func(*ReplaySource)

// WithReplayPort keeps only UDP datagrams sent to port. Zero keeps all.
func WithReplayPort(port int) ReplayOption {
	return func(s *ReplaySource) { s.port = port }
}

// WithReplaySpeed scales playback; 2 plays twice as fast. Zero or less
// disables pacing entirely.
func WithReplaySpeed(speed float64) ReplayOption {
	return func(s *ReplaySource) { s.speed = speed }
}

// WithReplayLoop restarts the capture from the beginning when it ends.
func WithReplayLoop(loop bool) ReplayOption {
	return func(s *ReplaySource) { s.loop = loop }
}

// NewReplaySource creates a source reading the capture at path.
func NewReplaySource(path string, opts ...ReplayOption) *ReplaySource {
	s := &ReplaySource{
		name:  "replay",
		path:  path,
		speed: 1,
		clock: time.Now,
		log:   logger.Get().Named("replay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *ReplaySource) Name() string { return s.name }

// Run implements Source. It returns nil when the capture ends and looping
// is off.
func (s *ReplaySource) Run(ctx context.Context, sink Sink) error {
	for {
		n, err := s.playOnce(ctx, sink)
		if err != nil {
			return err
		}
		s.log.Info(ctx, "capture finished", logger.String("path", s.path), logger.Int("frames", n))
		if !s.loop || ctx.Err() != nil || n == 0 {
			return nil
		}
	}
}

func (s *ReplaySource) playOnce(ctx context.Context, sink Sink) (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("read capture header: %w", err)
	}
	if !decodable(r.LinkType()) {
		return 0, fmt.Errorf("%w: %d in %s", ErrUnsupported, r.LinkType(), s.path)
	}

	var (
		first     time.Time
		startWall time.Time
		published int
	)
	for {
		if ctx.Err() != nil {
			return published, nil
		}

		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return published, nil
		}
		if err != nil {
			return published, fmt.Errorf("read packet: %w", err)
		}

		payload, ok := s.udpPayload(data, r.LinkType())
		if !ok {
			continue
		}

		if first.IsZero() {
			first = ci.Timestamp
			startWall = s.clock()
		}
		if !s.wait(ctx, startWall, ci.Timestamp.Sub(first)) {
			return published, nil
		}

		pkt, err := DecodePlayers(payload)
		if err != nil {
			metrics.RecordSensorDropped(s.name, ReasonMalformed)
			s.log.Debug(ctx, "captured datagram dropped", logger.Error(err))
			continue
		}
		sink.Publish(PlayersFrame(s.name, pkt, s.clock()))
		published++
	}
}

func (s *ReplaySource) udpPayload(data []byte, link layers.LinkType) ([]byte, bool) {
	packet := gopacket.NewPacket(data, link, gopacket.Default)
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}
	if s.port > 0 && int(udp.DstPort) != s.port {
		return nil, false
	}
	return udp.Payload, true
}

// decodable reports whether gopacket has a decoder for link. Unknown link
// types are registered with a decoder that is itself an error.
func decodable(link layers.LinkType) bool {
	_, unknown := layers.LinkTypeMetadata[link].DecodeWith.(error)
	return !unknown
}

// wait sleeps until offset has elapsed since start at the configured
// speed. It returns false when ctx ends first.
func (s *ReplaySource) wait(ctx context.Context, start time.Time, offset time.Duration) bool {
	if s.speed <= 0 {
		return true
	}
	due := start.Add(time.Duration(float64(offset) / s.speed))
	d := due.Sub(s.clock())
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Source = (*ReplaySource)(nil)
