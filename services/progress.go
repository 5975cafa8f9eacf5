package services

import "sync"

// ProgressEvent is one step of an orchestration run. Fractions are
// monotonically non-decreasing within a run.
type ProgressEvent struct {
	Fraction float64
	Message  string
}

// ProgressReporter receives progress events from an orchestrator.
// Publishing is best-effort: implementations must never block the
// orchestrator and delivery failures are not part of the correctness
// contract.
type ProgressReporter interface {
	Publish(fraction float64, message string)
}

// ReporterFunc adapts a function to the ProgressReporter interface.
type ReporterFunc func(fraction float64, message string)

func (f ReporterFunc) Publish(fraction float64, message string) {
	f(fraction, message)
}

// NopReporter discards all events. Used by silent CLI runs and tests.
var NopReporter ProgressReporter = ReporterFunc(func(float64, string) {})

// ChannelReporter queues events for a single consumer. Publish never
// blocks: once the consumer is gone or the buffer is exhausted events are
// silently dropped.
type ChannelReporter struct {
	ch     chan ProgressEvent
	closed sync.Once
}

func NewChannelReporter() *ChannelReporter {
	return &ChannelReporter{ch: make(chan ProgressEvent, 1024)}
}

func (r *ChannelReporter) Publish(fraction float64, message string) {
	select {
	case r.ch <- ProgressEvent{Fraction: fraction, Message: message}:
	default:
	}
}

// Events exposes the consumer side of the queue. The channel is not
// closed when the producing run completes; completion is observed through
// the orchestrator's return value instead.
func (r *ChannelReporter) Events() <-chan ProgressEvent {
	return r.ch
}

// Close releases the queue after the run has been joined.
func (r *ChannelReporter) Close() {
	r.closed.Do(func() { close(r.ch) })
}
