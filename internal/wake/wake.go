// Package wake implements the Wake Detector (spec.md §4.2, L2): a
// re-chunking consumer of PCM frames that emits WakeDetected when a
// configured keyphrase is recognised, backed by a pluggable Detector
// strategy.
package wake

import (
	"log/slog"

	"github.com/vocalmind/vocalmind/internal/actor"
	"github.com/vocalmind/vocalmind/internal/audio"
)

// Detector is the pluggable keyphrase-recognition strategy (spec.md §4.2:
// local keyword-spotter, local neural spotter, external broker-subscribed
// detector, command-line detector — all presenting this same interface).
type Detector interface {
	// Load prepares the detector (e.g. loading a model file or spawning a
	// subprocess). Called once, lazily on first Listen unless Preload is
	// set, in which case it's called at construction.
	Load() error
	// FrameBytes is this detector's preferred chunk size; the wake
	// detector re-chunks incoming frames to this size before Process.
	FrameBytes() int
	// Process classifies one frame, returning whether the keyphrase
	// matched and, if so, its configured name.
	Process(frame audio.Frame) (matched bool, name string)
	// Close releases any resources Load acquired.
	Close() error
}

// Source is the subset of the microphone source's interface the wake
// detector depends on.
type Source interface {
	StartStreaming(ch chan audio.Frame) error
	StopStreaming(ch chan audio.Frame)
}

// Event reports a keyphrase match, or (when diagnostics are enabled) a
// non-match, per frame processed.
type Event struct {
	Name     string
	Detected bool
}

type state int

const (
	stateIdle state = iota
	stateLoaded
	stateListening
)

type listenMsg struct {
	sink   chan Event
	record bool
	reply  chan error
}

type stopMsg struct {
	sink  chan Event
	reply chan struct{}
}

type frameMsg struct{ frame audio.Frame }

type loadMsg struct{ reply chan error }

type problemMsg struct{ reply chan error }

type message struct {
	listen  *listenMsg
	stop    *stopMsg
	frame   *frameMsg
	load    *loadMsg
	problem *problemMsg
}

// The wake chime is not played here: the dialogue coordinator plays it on
// WakeDetected (spec.md §4.7).

// Config controls diagnostic verbosity and loading strategy.
type Config struct {
	Preload         bool
	EmitNotDetected bool
}

// Wake is the L2 Wake Detector actor.
type Wake struct {
	mb       *actor.Mailbox[message]
	detector Detector
	source   Source
	cfg      Config

	state     state
	problem   error
	micCh     chan audio.Frame
	rechunker *audio.Rechunker
	sinks     map[chan Event]struct{}
	recording bool
}

// New creates a wake detector over the given source and detection
// strategy. If cfg.Preload is set, Load is attempted immediately.
func New(source Source, detector Detector, cfg Config) *Wake {
	w := &Wake{
		detector: detector,
		source:   source,
		cfg:      cfg,
		state:    stateIdle,
		sinks:    map[chan Event]struct{}{},
	}
	w.mb = actor.NewMailbox(64, w.handle)
	if cfg.Preload {
		reply := make(chan error, 1)
		w.mb.Send(message{load: &loadMsg{reply: reply}})
	}
	return w
}

func (w *Wake) handle(msg message) {
	switch {
	case msg.listen != nil:
		w.handleListen(msg.listen)
	case msg.stop != nil:
		w.handleStop(msg.stop)
	case msg.frame != nil:
		w.handleFrame(msg.frame.frame)
	case msg.load != nil:
		w.handleLoad(msg.load)
	case msg.problem != nil:
		msg.problem.reply <- w.problem
	}
}

func (w *Wake) handleLoad(m *loadMsg) {
	err := w.ensureLoaded()
	if m.reply != nil {
		m.reply <- err
	}
}

func (w *Wake) ensureLoaded() error {
	if w.state != stateIdle {
		return w.problem
	}
	if err := w.detector.Load(); err != nil {
		w.problem = err
		slog.Error("wake: detector load failed", "error", err)
		return err
	}
	w.state = stateLoaded
	w.problem = nil
	return nil
}

func (w *Wake) handleListen(m *listenMsg) {
	if err := w.ensureLoaded(); err != nil {
		m.reply <- err
		return
	}

	if len(w.sinks) == 0 {
		ch := make(chan audio.Frame, 64)
		if err := w.source.StartStreaming(ch); err != nil {
			m.reply <- err
			return
		}
		w.micCh = ch
		w.rechunker = audio.NewRechunker(w.detector.FrameBytes())
		w.state = stateListening
		w.recording = m.record
		go w.pumpFrames(ch)
	}

	w.sinks[m.sink] = struct{}{}
	m.reply <- nil
}

// pumpFrames forwards frames from the microphone subscription channel into
// the actor's own mailbox, keeping all state mutation on the actor
// goroutine.
func (w *Wake) pumpFrames(ch chan audio.Frame) {
	for f := range ch {
		if !w.mb.TrySend(message{frame: &frameMsg{f}}) {
			slog.Warn("wake: frame dropped, mailbox full")
		}
		if f.IsEndOfStream() {
			return
		}
	}
}

func (w *Wake) handleStop(m *stopMsg) {
	delete(w.sinks, m.sink)
	if len(w.sinks) == 0 && w.state == stateListening {
		w.source.StopStreaming(w.micCh)
		w.micCh = nil
		w.rechunker = nil
		w.state = stateLoaded
	}
	close(m.reply)
}

func (w *Wake) handleFrame(f audio.Frame) {
	if w.rechunker == nil {
		return
	}
	if f.IsEndOfStream() {
		w.broadcast(Event{Detected: false})
		return
	}
	for _, chunk := range w.rechunker.Push(f) {
		matched, name := w.detector.Process(chunk)
		if matched {
			w.broadcast(Event{Name: name, Detected: true})
		} else if w.cfg.EmitNotDetected {
			w.broadcast(Event{Detected: false})
		}
	}
}

func (w *Wake) broadcast(ev Event) {
	for sink := range w.sinks {
		select {
		case sink <- ev:
		default:
			slog.Warn("wake: event sink overflow, dropping event")
		}
	}
}

// Listen subscribes sink to wake events and starts the detector listening
// on the microphone source if it isn't already. record is forwarded for
// future use by detector variants that also buffer raw audio while
// listening; this implementation does not itself record.
func (w *Wake) Listen(sink chan Event, record bool) error {
	reply := make(chan error, 1)
	w.mb.Send(message{listen: &listenMsg{sink: sink, record: record, reply: reply}})
	return <-reply
}

// Stop unsubscribes sink, releasing the microphone source if it was the
// last listener.
func (w *Wake) Stop(sink chan Event) {
	reply := make(chan struct{})
	w.mb.Send(message{stop: &stopMsg{sink: sink, reply: reply}})
	<-reply
}

// Problem returns the last load error, if the detector is stuck in idle
// because loading failed, without attempting to reload (spec.md §4.2: on
// load failure the detector "does not auto-retry"). Returns nil once
// loading has succeeded.
func (w *Wake) Problem() error {
	reply := make(chan error, 1)
	w.mb.Send(message{problem: &problemMsg{reply: reply}})
	return <-reply
}

// Close shuts down the wake detector actor and releases the underlying
// detector strategy. Callers must have stopped all listeners first.
func (w *Wake) Close() error {
	w.mb.Close()
	return w.detector.Close()
}
