package core

import (
	"context"
	"sync"
)

// Stage tags a progress event with the pipeline phase it belongs to.
type Stage string

const (
	StageJava      Stage = "java"
	StageMods      Stage = "mods"
	StageLibraries Stage = "libraries"
	StageAssets    Stage = "assets"
	StageExtract   Stage = "extract"
	StageCompleted Stage = "completed"
)

// ProgressEvent reports that Current of Total artifacts of a stage have
// been processed. Current never decreases within a stage for one run.
type ProgressEvent struct {
	Stage   Stage `json:"stage"`
	Current int   `json:"current"`
	Total   int   `json:"total"`
}

// ProgressSink is the producer side of a bounded, ordered progress
// channel with a single consumer. Emit blocks when the consumer lags;
// events are never dropped, since they are the only liveness signal the
// user sees during long downloads.
//
// The producer owns the channel: it calls Emit from one goroutine and
// Close when the run ends. A consumer that stops reading calls Abandon,
// which makes further Emit calls fail with ErrChannelClosed instead of
// blocking forever.
type ProgressSink struct {
	ch chan ProgressEvent

	abandoned   chan struct{}
	abandonOnce sync.Once
	closeOnce   sync.Once
}

// NewProgressSink returns a sink and the receive side of its channel.
// size bounds how far the producer may run ahead of the consumer.
func NewProgressSink(size int) (*ProgressSink, <-chan ProgressEvent) {
	s := &ProgressSink{
		ch:        make(chan ProgressEvent, size),
		abandoned: make(chan struct{}),
	}
	return s, s.ch
}

// Emit delivers one event, blocking until the consumer has room. It
// fails with ErrChannelClosed once the consumer abandoned the stream,
// and with the context error if ctx ends first.
func (s *ProgressSink) Emit(ctx context.Context, ev ProgressEvent) error {
	select {
	case <-s.abandoned:
		return ErrChannelClosed
	default:
	}

	select {
	case s.ch <- ev:
		return nil
	case <-s.abandoned:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. The consumer sees the channel close after
// draining buffered events. Must be called by the producer, after the
// last Emit. Safe to call more than once.
func (s *ProgressSink) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Abandon tells the producer the consumer is gone. Buffered events are
// discarded by the runtime once nothing reads them; the next Emit
// returns ErrChannelClosed.
func (s *ProgressSink) Abandon() {
	s.abandonOnce.Do(func() { close(s.abandoned) })
}
