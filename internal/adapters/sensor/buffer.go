package sensor

import (
	"sync"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/metrics"
)

// FrameBuffer keeps only the most recent frame. Publishing never blocks on
// the reader and readers never wait for a writer.
type FrameBuffer struct {
	mu     sync.RWMutex
	frame  model.Frame
	seq    uint64
	closed bool
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer { return &FrameBuffer{} }

// Publish replaces the current frame. Frames published after Close are dropped.
func (b *FrameBuffer) Publish(f model.Frame) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.frame = f
	b.seq++
	b.mu.Unlock()
	metrics.RecordSensorFrame(f.Source)
}

// Latest returns the newest frame and its sequence number.
// A sequence of zero means nothing was published yet.
func (b *FrameBuffer) Latest() (model.Frame, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame, b.seq
}

// Close stops accepting frames.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// IsClosed returns true if the buffer has been closed.
func (b *FrameBuffer) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

var _ Sink = (*FrameBuffer)(nil)
