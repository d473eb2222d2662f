package sensor_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/mangacatch/internal/adapters/sensor"
	"github.com/okian/mangacatch/internal/domain/model"
	logging "github.com/okian/mangacatch/pkg/logger"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeSocket delivers queued datagrams and times out when none are pending.
type fakeSocket struct {
	in       chan []byte
	mu       sync.Mutex
	deadline time.Time
	closed   bool
}

func newFakeSocket() *fakeSocket { return &fakeSocket{in: make(chan []byte, 16)} }

func (s *fakeSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	s.mu.Lock()
	wait := time.Until(s.deadline)
	s.mu.Unlock()
	t := time.NewTimer(max(wait, time.Millisecond))
	defer t.Stop()
	select {
	case d := <-s.in:
		return copy(b, d), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}, nil
	case <-t.C:
		return 0, nil, timeoutError{}
	}
}

func (s *fakeSocket) SetReadBuffer(int) error { return nil }

func (s *fakeSocket) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.deadline = t
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) LocalAddr() net.Addr { return &net.UDPAddr{Port: 7000} }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeFactory struct{ sock *fakeSocket }

func (f fakeFactory) ListenUDP(string, *net.UDPAddr) (sensor.UDPSocket, error) { return f.sock, nil }

// recordingSink keeps every frame it receives.
type recordingSink struct {
	mu     sync.Mutex
	frames []model.Frame
}

func (r *recordingSink) Publish(f model.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recordingSink) Frames() []model.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Frame(nil), r.frames...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func mustEncode(frame int, players ...sensor.Player) []byte {
	data, err := sensor.EncodePlayers(frame, players)
	if err != nil {
		panic(err)
	}
	return data
}

func TestTelemetrySource(t *testing.T) {
	convey.Convey("Given a telemetry source", t, func() {
		_ = logging.Init()
		at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
		src := sensor.NewTelemetrySource(":0", sensor.WithTelemetryClock(func() time.Time { return at }))

		convey.Convey("A valid datagram becomes a frame with clamped positions", func() {
			f, err := src.HandleDatagram(mustEncode(1,
				sensor.Player{ID: 2, X: 0.5, Y: 0.25},
				sensor.Player{ID: 3, X: 1.5, Y: -0.5},
			))
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.Source, convey.ShouldEqual, "telemetry")
			convey.So(f.At, convey.ShouldEqual, at)
			convey.So(f.PersonCount, convey.ShouldEqual, 2)
			convey.So(f.Confirmed, convey.ShouldBeFalse)
			convey.So(f.Detections, convey.ShouldResemble, []model.Detection{
				{ExternalID: 2, X: 0.5, Y: 0.25},
				{ExternalID: 3, X: 1, Y: 0},
			})
		})

		convey.Convey("Garbage is an IngestError with the malformed reason", func() {
			_, err := src.HandleDatagram([]byte("garbage"))
			var ie *sensor.IngestError
			convey.So(errors.As(err, &ie), convey.ShouldBeTrue)
			convey.So(ie.Reason, convey.ShouldEqual, sensor.ReasonMalformed)
		})

		convey.Convey("A sender that never advances its frame counter is not dropped", func() {
			for range 10 {
				f, err := src.HandleDatagram(mustEncode(0, sensor.Player{ID: 1, X: 0.5, Y: 0.5}))
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.PersonCount, convey.ShouldEqual, 1)
			}
		})

		convey.Convey("Frame counters past float32 precision and going backwards are accepted", func() {
			for i := range 100 {
				_, err := src.HandleDatagram(mustEncode(1<<24 + i))
				convey.So(err, convey.ShouldBeNil)
			}
			_, err := src.HandleDatagram(mustEncode(5))
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("Run publishes good datagrams and keeps going past bad ones", func() {
			sock := newFakeSocket()
			src := sensor.NewTelemetrySource(":0", sensor.WithSocketFactory(fakeFactory{sock}))
			sink := &recordingSink{}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- src.Run(ctx, sink) }()

			sock.in <- mustEncode(1, sensor.Player{ID: 1, X: 0.5, Y: 0.5})
			sock.in <- []byte("not a datagram")
			sock.in <- mustEncode(2, sensor.Player{ID: 1, X: 0.25, Y: 0.5})

			convey.So(eventually(func() bool { return len(sink.Frames()) == 2 }), convey.ShouldBeTrue)
			convey.So(src.LocalAddr().String(), convey.ShouldEqual, ":7000")

			cancel()
			convey.So(<-done, convey.ShouldBeNil)
			sock.mu.Lock()
			convey.So(sock.closed, convey.ShouldBeTrue)
			sock.mu.Unlock()
		})
	})
}

func TestTelemetrySourceRealSocket(t *testing.T) {
	convey.Convey("Given a telemetry source on a loopback socket", t, func() {
		_ = logging.Init()
		src := sensor.NewTelemetrySource("127.0.0.1:0")
		sink := &recordingSink{}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = src.Run(ctx, sink) }()

		convey.So(eventually(func() bool { return src.LocalAddr() != nil }), convey.ShouldBeTrue)
		conn, err := net.DialUDP("udp", nil, src.LocalAddr().(*net.UDPAddr))
		convey.So(err, convey.ShouldBeNil)
		defer conn.Close()

		convey.Convey("Datagrams sent to it are published", func() {
			_, err := conn.Write(mustEncode(5, sensor.Player{ID: 1, X: 0.5, Y: 0.5}))
			convey.So(err, convey.ShouldBeNil)
			convey.So(eventually(func() bool { return len(sink.Frames()) == 1 }), convey.ShouldBeTrue)
			convey.So(sink.Frames()[0].Detections[0].ExternalID, convey.ShouldEqual, 1)
		})
	})
}
