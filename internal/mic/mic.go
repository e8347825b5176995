// Package mic implements the Microphone Source (spec.md §4.1, L1): a lazy,
// potentially-infinite fan-out of fixed-size PCM frames to subscribers and
// named accumulation buffers, with reference-counted acquisition of the
// underlying capture device.
package mic

import (
	"fmt"
	"log/slog"

	"github.com/vocalmind/vocalmind/internal/actor"
	"github.com/vocalmind/vocalmind/internal/audio"
)

// Capturer is the external collaborator that actually owns the hardware
// microphone (out of scope per spec.md §1: "aplay/arecord subprocess glue
// ... out of scope"). Real deployments wrap an arecord subprocess or an
// ALSA/CoreAudio binding behind this interface; tests and composition use
// the dummy Capturer in dummy.go.
type Capturer interface {
	// Start begins producing frames, invoking emit for each one, until
	// Stop is called or a fatal I/O error occurs (reported via onError).
	Start(emit func(audio.Frame), onError func(error)) error
	Stop() error
}

type subscriber chan audio.Frame

type subscribeMsg struct {
	sub   subscriber
	reply chan struct{}
}

type unsubscribeMsg struct {
	sub   subscriber
	reply chan struct{}
}

type startBufferMsg struct {
	name  string
	reply chan struct{}
}

type stopBufferMsg struct {
	name  string
	reply chan []byte
}

type frameMsg struct{ frame audio.Frame }

type captureErrorMsg struct{ err error }

type message struct {
	subscribe   *subscribeMsg
	unsubscribe *unsubscribeMsg
	startBuffer *startBufferMsg
	stopBuffer  *stopBufferMsg
	frame       *frameMsg
	captureErr  *captureErrorMsg
}

// Source is the L1 Microphone Source actor.
type Source struct {
	mb       *actor.Mailbox[message]
	capturer Capturer

	subs    map[subscriber]struct{}
	buffers map[string][]byte
	errored bool
}

// New creates a microphone source over the given capturer. The capture
// device is not acquired until the first subscriber or named buffer starts.
func New(capturer Capturer) *Source {
	s := &Source{
		capturer: capturer,
		subs:     map[subscriber]struct{}{},
		buffers:  map[string][]byte{},
	}
	s.mb = actor.NewMailbox(64, s.handle)
	return s
}

func (s *Source) handle(msg message) {
	switch {
	case msg.subscribe != nil:
		s.handleSubscribe(msg.subscribe)
	case msg.unsubscribe != nil:
		s.handleUnsubscribe(msg.unsubscribe)
	case msg.startBuffer != nil:
		s.handleStartBuffer(msg.startBuffer)
	case msg.stopBuffer != nil:
		s.handleStopBuffer(msg.stopBuffer)
	case msg.frame != nil:
		s.handleFrame(msg.frame.frame)
	case msg.captureErr != nil:
		s.handleCaptureError(msg.captureErr.err)
	}
}

func (s *Source) consumerCount() int {
	return len(s.subs) + len(s.buffers)
}

func (s *Source) ensureAcquired() error {
	if s.consumerCount() != 1 || s.errored {
		return nil // not the first consumer, or device already live/errored
	}
	return s.capturer.Start(
		func(f audio.Frame) { s.mb.TrySend(message{frame: &frameMsg{f}}) },
		func(err error) { s.mb.TrySend(message{captureErr: &captureErrorMsg{err}}) },
	)
}

func (s *Source) releaseIfLast() {
	if s.consumerCount() == 0 && !s.errored {
		if err := s.capturer.Stop(); err != nil {
			slog.Warn("mic: capture stop failed", "error", err)
		}
	}
}

func (s *Source) handleSubscribe(m *subscribeMsg) {
	s.subs[m.sub] = struct{}{}
	if err := s.ensureAcquired(); err != nil {
		slog.Error("mic: capture start failed", "error", err)
		delete(s.subs, m.sub)
		s.errored = true
		close(m.reply)
		return
	}
	close(m.reply)
}

func (s *Source) handleUnsubscribe(m *unsubscribeMsg) {
	delete(s.subs, m.sub)
	s.releaseIfLast()
	close(m.reply)
}

func (s *Source) handleStartBuffer(m *startBufferMsg) {
	s.buffers[m.name] = nil
	if err := s.ensureAcquired(); err != nil {
		slog.Error("mic: capture start failed", "error", err)
		delete(s.buffers, m.name)
		s.errored = true
	}
	close(m.reply)
}

func (s *Source) handleStopBuffer(m *stopBufferMsg) {
	data := s.buffers[m.name]
	delete(s.buffers, m.name)
	s.releaseIfLast()
	m.reply <- data
}

func (s *Source) handleFrame(f audio.Frame) {
	for sub := range s.subs {
		select {
		case sub <- f:
		default:
			slog.Warn("mic: subscriber overflow, dropping frame")
		}
	}
	for name := range s.buffers {
		s.buffers[name] = append(s.buffers[name], f...)
	}
}

// handleCaptureError transitions to the terminal error state: every current
// subscriber gets one end-of-stream (zero-length) frame, per spec.md §4.1.
func (s *Source) handleCaptureError(err error) {
	slog.Error("mic: capture error, entering terminal state", "error", err)
	s.errored = true
	for sub := range s.subs {
		select {
		case sub <- audio.Frame{}:
		default:
		}
	}
	s.subs = map[subscriber]struct{}{}
	s.buffers = map[string][]byte{}
}

// StartStreaming subscribes ch to receive every frame from now on, in
// production order, acquiring the capture device if this is the first
// consumer. ch should be buffered; Source drops frames to a full channel
// rather than blocking (back-pressure is the subscriber's problem, not the
// source's — spec.md §5 "never retried automatically inside the source").
func (s *Source) StartStreaming(ch chan audio.Frame) error {
	reply := make(chan struct{})
	s.mb.Send(message{subscribe: &subscribeMsg{sub: subscriber(ch), reply: reply}})
	<-reply
	if s.errored {
		return fmt.Errorf("mic: capture device unavailable")
	}
	return nil
}

// StopStreaming unsubscribes ch, releasing the capture device if ch was the
// last consumer.
func (s *Source) StopStreaming(ch chan audio.Frame) {
	reply := make(chan struct{})
	s.mb.Send(message{unsubscribe: &unsubscribeMsg{sub: subscriber(ch), reply: reply}})
	<-reply
}

// StartBuffer begins accumulating frames under name.
func (s *Source) StartBuffer(name string) error {
	reply := make(chan struct{})
	s.mb.Send(message{startBuffer: &startBufferMsg{name: name, reply: reply}})
	<-reply
	if s.errored {
		return fmt.Errorf("mic: capture device unavailable")
	}
	return nil
}

// StopBuffer stops accumulating under name and returns everything captured.
func (s *Source) StopBuffer(name string) []byte {
	reply := make(chan []byte)
	s.mb.Send(message{stopBuffer: &stopBufferMsg{name: name, reply: reply}})
	return <-reply
}

// Close shuts down the source actor. Callers must have released all
// subscribers and buffers first.
func (s *Source) Close() { s.mb.Close() }
