package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/okian/mangacatch/internal/domain/cluster"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// Rangefinder defaults, millimetres.
const (
	DefaultSpanMM  = 4000.0
	DefaultDepthMM = 3000.0
	// DefaultMaxJumpMM bounds how far a person may move between scans and keep its id.
	DefaultMaxJumpMM = 500.0
)

// PortOpener opens a serial device for reading.
type PortOpener func(name string, baud int) (io.ReadCloser, error)

// OpenSerial opens a real serial port at 8N1.
func OpenSerial(name string, baud int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return port, nil
}

// RangefinderSource reads floor scans from a serial rangefinder, one scan
// per line formatted "x,y;x,y;..." in millimetres with the sensor at the
// origin and x running across the play area.
type RangefinderSource struct {
	name    string
	port    string
	baud    int
	open    PortOpener
	spanMM  float64
	depthMM float64
	clock   func() time.Time
	log     logger.Logger

	mu         sync.Mutex
	clusterer  cluster.Clusterer
	params     cluster.Params
	debouncer  *cluster.Debouncer
	associator *cluster.Associator
}

// RangefinderOption configures a RangefinderSource.
type RangefinderOption func(*RangefinderSource)

// WithPortOpener replaces the serial opener, mainly for tests.
func WithPortOpener(open PortOpener) RangefinderOption {
	return func(s *RangefinderSource) { s.open = open }
}

// WithClusterParams sets the person classifier bounds and merge distance.
func WithClusterParams(p cluster.Params) RangefinderOption {
	return func(s *RangefinderSource) {
		s.params = p
		s.clusterer = cluster.NewSequentialClusterer(p.MergeDistance)
	}
}

// WithClusterer replaces the clustering strategy.
func WithClusterer(c cluster.Clusterer) RangefinderOption {
	return func(s *RangefinderSource) { s.clusterer = c }
}

// WithHoldTime sets how long a count must be stable before it is confirmed.
func WithHoldTime(d time.Duration) RangefinderOption {
	return func(s *RangefinderSource) { s.debouncer = cluster.NewDebouncer(d) }
}

// WithArea sets the covered area: span across, depth away from the sensor.
func WithArea(spanMM, depthMM float64) RangefinderOption {
	return func(s *RangefinderSource) {
		s.spanMM = spanMM
		s.depthMM = depthMM
	}
}

// WithRangefinderClock sets the clock used to stamp scans.
func WithRangefinderClock(clock func() time.Time) RangefinderOption {
	return func(s *RangefinderSource) { s.clock = clock }
}

// NewRangefinderSource creates a source reading port at baud.
func NewRangefinderSource(port string, baud int, opts ...RangefinderOption) *RangefinderSource {
	params := cluster.DefaultParams()
	s := &RangefinderSource{
		name:       "rangefinder",
		port:       port,
		baud:       baud,
		open:       OpenSerial,
		spanMM:     DefaultSpanMM,
		depthMM:    DefaultDepthMM,
		clock:      time.Now,
		log:        logger.Get().Named("rangefinder"),
		clusterer:  cluster.NewSequentialClusterer(params.MergeDistance),
		params:     params,
		debouncer:  cluster.NewDebouncer(cluster.DefaultHoldTime),
		associator: cluster.NewAssociator(DefaultMaxJumpMM),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *RangefinderSource) Name() string { return s.name }

// Run implements Source. It returns an error when the port fails so the
// listener can reopen it.
func (s *RangefinderSource) Run(ctx context.Context, sink Sink) error {
	port, err := s.open(s.port, s.baud)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "rangefinder opened", logger.String("port", s.port), logger.Int("baud", s.baud))

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(port)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	defer port.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return fmt.Errorf("serial %s closed: %w", s.port, err)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			points, err := ParseScan(line)
			if err != nil {
				metrics.RecordSensorDropped(s.name, ReasonMalformed)
				s.log.Debug(ctx, "scan dropped", logger.Error(err))
				continue
			}
			sink.Publish(s.ProcessScan(points, s.clock()))
		}
	}
}

// ProcessScan clusters one scan, debounces the person count and maps each
// person to a tracked detection in normalized screen space.
func (s *RangefinderSource) ProcessScan(points []model.RawPoint, now time.Time) model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	people := s.params.People(s.clusterer.Cluster(points))
	confirmed, _ := s.debouncer.Observe(len(people), now)
	tracks := s.associator.Associate(people)

	dets := make([]model.Detection, 0, len(tracks))
	for _, t := range tracks {
		dets = append(dets, model.Detection{
			ExternalID: t.ID,
			X:          clamp01((t.CenterX + s.spanMM/2) / s.spanMM),
			Y:          clamp01(t.CenterY / s.depthMM),
		})
	}
	return model.Frame{
		Source:      s.name,
		At:          now,
		Detections:  dets,
		Confirmed:   true,
		PersonCount: confirmed,
	}
}

// ParseScan parses "x,y;x,y;..." into points. Empty pairs are skipped.
func ParseScan(line string) ([]model.RawPoint, error) {
	pairs := strings.Split(line, ";")
	out := make([]model.RawPoint, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, &IngestError{Source: "rangefinder", Reason: ReasonMalformed,
				Err: fmt.Errorf("%w: pair %q", ErrMalformed, pair)}
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if errX != nil || errY != nil {
			return nil, &IngestError{Source: "rangefinder", Reason: ReasonMalformed,
				Err: fmt.Errorf("%w: pair %q", ErrMalformed, pair)}
		}
		out = append(out, model.RawPoint{X: x, Y: y})
	}
	return out, nil
}

var _ Source = (*RangefinderSource)(nil)
