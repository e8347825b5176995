// Package dialogue implements the Dialogue Coordinator (spec.md §4.7, L7):
// the actor owning overall session state and routing messages among the
// L1-L6 components.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vocalmind/vocalmind/internal/actor"
	"github.com/vocalmind/vocalmind/internal/audio"
	"github.com/vocalmind/vocalmind/internal/decoder"
	"github.com/vocalmind/vocalmind/internal/listener"
	"github.com/vocalmind/vocalmind/internal/metrics"
	"github.com/vocalmind/vocalmind/internal/recognizer"
	"github.com/vocalmind/vocalmind/internal/vad"
	"github.com/vocalmind/vocalmind/internal/wake"
)

// State is one of the coordinator's session states (spec.md §4.7).
type State string

const (
	StateStarted           State = "started"
	StateLoading           State = "loading"
	StateReady             State = "ready"
	StateAsleep            State = "asleep"
	StateAwake             State = "awake"
	StateDecoding          State = "decoding"
	StateRecognizing       State = "recognizing"
	StateHandling          State = "handling"
	StateTrainingSentences State = "training_sentences"
	StateTrainingSpeech    State = "training_speech"
	StateTrainingIntent    State = "training_intent"
)

// Microphone is the subset of internal/mic.Source's interface the command
// capture loop depends on.
type Microphone interface {
	StartStreaming(ch chan audio.Frame) error
	StopStreaming(ch chan audio.Frame)
}

// WakeDetector is the subset of internal/wake.Wake's interface the
// coordinator depends on.
type WakeDetector interface {
	Listen(sink chan wake.Event, record bool) error
	Stop(sink chan wake.Event)
	Problem() error
}

// Decoder is the subset of internal/decoder.Decoder's interface the
// coordinator depends on.
type Decoder interface {
	Transcribe(ctx context.Context, wav []byte) (decoder.Result, error)
	Reload(ctx context.Context) error
}

// Recognizer is the subset of internal/recognizer.Recognizer's interface
// the coordinator depends on.
type Recognizer interface {
	Recognize(text string, speechConfidence float64) (recognizer.Result, error)
}

// IntentHandler is the subset of internal/handler.Handler's interface the
// coordinator depends on.
type IntentHandler interface {
	Handle(ctx context.Context, result recognizer.Result) recognizer.Result
}

// Speaker is the TTS collaborator's contract (spec.md §1: the TTS
// subsystem itself is out of scope; only this interface is specified).
type Speaker interface {
	Speak(ctx context.Context, text string) error
	PlayWakeChime()
	PlayCapturedChime()
}

// PronunciationLookup answers the out-of-band "pronunciations" request
// (spec.md §4.7) from the run-time dictionary (internal/dict, T3's output).
type PronunciationLookup interface {
	Lookup(words []string) map[string][]string
}

// TelemetryRecorder is the subset of internal/telemetry.Recorder's
// interface the coordinator depends on; a nil TelemetryRecorder (and a nil
// *telemetry.Recorder satisfies this as a typed nil) disables telemetry
// entirely, same as the teacher's trace.Tracer nil-receiver contract.
type TelemetryRecorder interface {
	StartSession() string
	EndSession(sessionID string)
	StartTurn(sessionID string) string
	EndTurn(turnID string, durationMs, confidence float64, transcript, intent, status string)
	RecordSpan(turnID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string)
	StartTrainingRun(stage string) string
	EndTrainingRun(id string, durationMs float64, status, errMsg string)
}

// TrainRunner drives the three training sub-states (spec.md §4.7
// "training"); internal/train supplies the real implementation.
type TrainRunner interface {
	TrainSentences(ctx context.Context) error
	TrainSpeech(ctx context.Context) error
	TrainIntent(ctx context.Context) error
}

// Config controls coordinator behavior not implied by its collaborators.
type Config struct {
	ListenOnStart bool          // spec.md §4.7: "a listen_on_start profile flag automatically enters asleep on boot"
	LoadTimeout   time.Duration // spec.md §4.7/§5: loading phase deadline
	VAD           vad.Config
}

type loadResult struct {
	name string
	err  error
}

// Coordinator is the L7 Dialogue Coordinator actor.
type Coordinator struct {
	mb *actor.Mailbox[message]

	cfg        Config
	mic        Microphone
	wakeDet    WakeDetector
	dec        Decoder
	rec        Recognizer
	hdl        IntentHandler
	speaker    Speaker
	dict       PronunciationLookup
	classifier vad.Classifier

	state   State
	problem map[string]error

	wakeSink     chan wake.Event
	micCh        chan audio.Frame
	curListener  *listener.Listener
	pendingReply chan recognizer.Result
	handleIntent bool

	trainReply chan error
	trainer    TrainRunner

	tel          TelemetryRecorder
	curSession   string
	sessionAdHoc bool
	curTurn      string
	turnStarted  time.Time
}

// New creates a coordinator over its L1-L6 collaborators. classifier is
// used to construct a fresh Command Listener for each captured command.
// tel may be nil to disable telemetry entirely.
func New(cfg Config, mic Microphone, wakeDet WakeDetector, dec Decoder, rec Recognizer, hdl IntentHandler, speaker Speaker, dict PronunciationLookup, classifier vad.Classifier, tel TelemetryRecorder) *Coordinator {
	c := &Coordinator{
		cfg:        cfg,
		mic:        mic,
		wakeDet:    wakeDet,
		dec:        dec,
		rec:        rec,
		hdl:        hdl,
		speaker:    speaker,
		dict:       dict,
		classifier: classifier,
		state:      StateStarted,
		tel:        tel,
	}
	c.mb = actor.NewMailbox(64, c.handle)
	return c
}

// State returns the coordinator's current session state.
func (c *Coordinator) State() State {
	reply := make(chan State, 1)
	c.mb.Send(message{stateQuery: &stateQueryMsg{reply: reply}})
	return <-reply
}

// Load runs the loading phase: every configurable collaborator reports
// readiness (or a problem) before the coordinator enters ready. If
// cfg.LoadTimeout elapses first, the coordinator proceeds anyway with
// whichever collaborators did load, per spec.md §4.7/§5.
func (c *Coordinator) Load(ctx context.Context) map[string]error {
	reply := make(chan map[string]error, 1)
	c.mb.Send(message{load: &loadMsg{ctx: ctx, reply: reply}})
	return <-reply
}

// ListenForWake transitions ready → asleep, starting the wake detector.
func (c *Coordinator) ListenForWake() error {
	reply := make(chan error, 1)
	c.mb.Send(message{listenForWake: &listenForWakeMsg{reply: reply}})
	return <-reply
}

// StopListening transitions asleep/awake back to ready, stopping the wake
// detector and any in-progress command capture.
func (c *Coordinator) StopListening() {
	reply := make(chan struct{})
	c.mb.Send(message{stopListening: &stopListeningMsg{reply: reply}})
	<-reply
}

// TriggerCommand manually starts command capture (e.g. push-to-talk)
// without a wake detection, notifying reply with the final intent result
// once the pipeline reaches ready again.
func (c *Coordinator) TriggerCommand(reply chan recognizer.Result) error {
	ack := make(chan error, 1)
	c.mb.Send(message{triggerCommand: &triggerCommandMsg{reply: reply, ack: ack}})
	return <-ack
}

// Transcribe is the out-of-band "transcribe a supplied WAV" request
// (spec.md §4.7): honoured in any state, doesn't disturb session state.
func (c *Coordinator) Transcribe(ctx context.Context, wav []byte) (decoder.Result, error) {
	reply := make(chan transcribeReply, 1)
	c.mb.Send(message{transcribeRequest: &transcribeRequestMsg{ctx: ctx, wav: wav, reply: reply}})
	r := <-reply
	return r.result, r.err
}

// Recognize is the out-of-band "recognize a supplied text" request.
func (c *Coordinator) Recognize(text string, speechConfidence float64) (recognizer.Result, error) {
	reply := make(chan recognizeReply, 1)
	c.mb.Send(message{recognizeRequest: &recognizeRequestMsg{text: text, speechConfidence: speechConfidence, reply: reply}})
	r := <-reply
	return r.result, r.err
}

// Speak is the out-of-band "speak a sentence" request.
func (c *Coordinator) Speak(ctx context.Context, text string) error {
	reply := make(chan error, 1)
	c.mb.Send(message{speakRequest: &speakRequestMsg{ctx: ctx, text: text, reply: reply}})
	return <-reply
}

// Pronunciations is the out-of-band "get pronunciations" request.
func (c *Coordinator) Pronunciations(words []string) (map[string][]string, error) {
	reply := make(chan pronunciationsReply, 1)
	c.mb.Send(message{pronunciationsRequest: &pronunciationsRequestMsg{words: words, reply: reply}})
	r := <-reply
	return r.result, r.err
}

// StartTraining pauses wake listening and drives runner through the three
// training sub-states, reporting the outcome on reply once training (and
// any component reload) completes. Returns an error immediately, without
// starting anything, if training is already in progress (spec.md §5:
// "cannot be in any training_* state while in any session state" is
// maintained by refusing overlap here).
func (c *Coordinator) StartTraining(runner TrainRunner, reply chan error) error {
	ack := make(chan error, 1)
	c.mb.Send(message{startTraining: &startTrainingMsg{runner: runner, reply: reply, ack: ack}})
	return <-ack
}

// Close shuts down the coordinator actor. Does not close collaborators.
func (c *Coordinator) Close() { c.mb.Close() }

type transcribeReply struct {
	result decoder.Result
	err    error
}

type recognizeReply struct {
	result recognizer.Result
	err    error
}

type pronunciationsReply struct {
	result map[string][]string
	err    error
}

type loadMsg struct {
	ctx   context.Context
	reply chan map[string]error
}

type listenForWakeMsg struct{ reply chan error }

type stopListeningMsg struct{ reply chan struct{} }

type triggerCommandMsg struct {
	reply chan recognizer.Result
	ack   chan error
}

type wakeEventMsg struct{ ev wake.Event }

type voiceCommandMsg struct{ cmd listener.VoiceCommand }

type transcribedMsg struct {
	result decoder.Result
	err    error
}

type recognizedMsg struct {
	result recognizer.Result
	err    error
}

type handledMsg struct{ result recognizer.Result }

type transcribeRequestMsg struct {
	ctx   context.Context
	wav   []byte
	reply chan transcribeReply
}

type recognizeRequestMsg struct {
	text             string
	speechConfidence float64
	reply            chan recognizeReply
}

type speakRequestMsg struct {
	ctx   context.Context
	text  string
	reply chan error
}

type pronunciationsRequestMsg struct {
	words []string
	reply chan pronunciationsReply
}

type startTrainingMsg struct {
	runner TrainRunner
	reply  chan error
	ack    chan error
}

type trainingStageDoneMsg struct {
	next State
	err  error
}

type stateQueryMsg struct{ reply chan State }

type message struct {
	load                  *loadMsg
	listenForWake         *listenForWakeMsg
	stopListening         *stopListeningMsg
	triggerCommand        *triggerCommandMsg
	wakeEvent             *wakeEventMsg
	voiceCommand          *voiceCommandMsg
	transcribed           *transcribedMsg
	recognized            *recognizedMsg
	handled               *handledMsg
	transcribeRequest     *transcribeRequestMsg
	recognizeRequest      *recognizeRequestMsg
	speakRequest          *speakRequestMsg
	pronunciationsRequest *pronunciationsRequestMsg
	startTraining         *startTrainingMsg
	trainingStageDone     *trainingStageDoneMsg
	stateQuery            *stateQueryMsg
}

func (c *Coordinator) handle(msg message) {
	switch {
	case msg.load != nil:
		c.handleLoad(msg.load)
	case msg.listenForWake != nil:
		c.handleListenForWake(msg.listenForWake)
	case msg.stopListening != nil:
		c.handleStopListening(msg.stopListening)
	case msg.triggerCommand != nil:
		c.handleTriggerCommand(msg.triggerCommand)
	case msg.wakeEvent != nil:
		c.handleWakeEvent(msg.wakeEvent.ev)
	case msg.voiceCommand != nil:
		c.handleVoiceCommand(msg.voiceCommand.cmd)
	case msg.transcribed != nil:
		c.handleTranscribed(msg.transcribed)
	case msg.recognized != nil:
		c.handleRecognized(msg.recognized)
	case msg.handled != nil:
		c.handleHandled(msg.handled.result)
	case msg.transcribeRequest != nil:
		c.handleTranscribeRequest(msg.transcribeRequest)
	case msg.recognizeRequest != nil:
		c.handleRecognizeRequest(msg.recognizeRequest)
	case msg.speakRequest != nil:
		c.handleSpeakRequest(msg.speakRequest)
	case msg.pronunciationsRequest != nil:
		c.handlePronunciationsRequest(msg.pronunciationsRequest)
	case msg.startTraining != nil:
		c.handleStartTraining(msg.startTraining)
	case msg.trainingStageDone != nil:
		c.handleTrainingStageDone(msg.trainingStageDone)
	case msg.stateQuery != nil:
		msg.stateQuery.reply <- c.state
	}
}

func (c *Coordinator) setState(s State) {
	if c.state != "" {
		metrics.DialogueState.WithLabelValues(string(c.state)).Set(0)
	}
	c.state = s
	metrics.DialogueState.WithLabelValues(string(s)).Set(1)
	slog.Info("dialogue: state transition", "state", string(s))
}

// handleLoad configures the wake detector and decoder (the two
// collaborators with meaningful load state) and collects a per-component
// problem map, per spec.md §4.7's loading state. The recognizer/handler
// have no load phase of their own (their strategies are constructed
// already-configured).
func (c *Coordinator) handleLoad(m *loadMsg) {
	c.setState(StateLoading)

	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LoadTimeout)
		defer cancel()
	}

	results := make(chan loadResult, 2)
	go func() { results <- loadResult{"wake", c.wakeDet.Problem()} }()
	go func() { results <- loadResult{"decoder", c.dec.Reload(ctx)} }()

	problems := map[string]error{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				problems[r.name] = r.err
			}
		case <-ctx.Done():
			slog.Warn("dialogue: load timeout, proceeding with partial problem map")
			i = 2
		}
	}
	c.problem = problems

	c.setState(StateReady)
	if c.cfg.ListenOnStart {
		c.enterAsleep(nil)
	}
	m.reply <- problems
}

func (c *Coordinator) handleListenForWake(m *listenForWakeMsg) {
	if c.state == StateTrainingSentences || c.state == StateTrainingSpeech || c.state == StateTrainingIntent {
		m.reply <- fmt.Errorf("dialogue: training in progress")
		return
	}
	if c.state != StateReady {
		m.reply <- fmt.Errorf("dialogue: listen_for_wake invalid in state %s", c.state)
		return
	}
	m.reply <- c.enterAsleep(nil)
}

// telStartSession/telEndSession/... guard every telemetry call against a
// nil Coordinator.tel (the TelemetryRecorder interface itself, not just a
// nil *telemetry.Recorder value), since an interface method call on a nil
// interface panics where a nil-receiver call on a concrete *Recorder does
// not.
func (c *Coordinator) telStartSession() string {
	if c.tel == nil {
		return ""
	}
	return c.tel.StartSession()
}

func (c *Coordinator) telEndSession(id string) {
	if c.tel == nil {
		return
	}
	c.tel.EndSession(id)
}

func (c *Coordinator) telStartTurn(sessionID string) string {
	if c.tel == nil {
		return ""
	}
	return c.tel.StartTurn(sessionID)
}

func (c *Coordinator) telEndTurn(turnID string, durationMs, confidence float64, transcript, intent, status string) {
	if c.tel == nil {
		return
	}
	c.tel.EndTurn(turnID, durationMs, confidence, transcript, intent, status)
}

func (c *Coordinator) telRecordSpan(turnID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string) {
	if c.tel == nil {
		return
	}
	c.tel.RecordSpan(turnID, name, startedAt, durationMs, input, output, status, errMsg)
}

func (c *Coordinator) telStartTrainingRun(stage string) string {
	if c.tel == nil {
		return ""
	}
	return c.tel.StartTrainingRun(stage)
}

func (c *Coordinator) telEndTrainingRun(id string, durationMs float64, status, errMsg string) {
	if c.tel == nil {
		return
	}
	c.tel.EndTrainingRun(id, durationMs, status, errMsg)
}

func (c *Coordinator) enterAsleep(pendingReply chan recognizer.Result) error {
	c.wakeSink = make(chan wake.Event, 8)
	if err := c.wakeDet.Listen(c.wakeSink, false); err != nil {
		return err
	}
	c.pendingReply = pendingReply
	if c.curSession == "" {
		c.curSession = c.telStartSession()
		c.sessionAdHoc = false
	}
	go c.pumpWakeEvents(c.wakeSink)
	c.setState(StateAsleep)
	return nil
}

func (c *Coordinator) pumpWakeEvents(sink chan wake.Event) {
	for ev := range sink {
		if !ev.Detected {
			continue
		}
		if !c.mb.TrySend(message{wakeEvent: &wakeEventMsg{ev}}) {
			slog.Warn("dialogue: wake event dropped, mailbox full")
		}
	}
}

func (c *Coordinator) handleStopListening(m *stopListeningMsg) {
	if c.wakeSink != nil {
		c.wakeDet.Stop(c.wakeSink)
		c.wakeSink = nil
	}
	if c.micCh != nil {
		c.mic.StopStreaming(c.micCh)
		c.micCh = nil
	}
	c.curListener = nil
	if c.curSession != "" && !c.sessionAdHoc {
		c.telEndSession(c.curSession)
		c.curSession = ""
	}
	c.setState(StateReady)
	close(m.reply)
}

func (c *Coordinator) handleTriggerCommand(m *triggerCommandMsg) {
	if c.state != StateReady && c.state != StateAsleep {
		m.ack <- fmt.Errorf("dialogue: trigger_command invalid in state %s", c.state)
		return
	}
	c.pendingReply = m.reply
	c.startCommandCapture()
	m.ack <- nil
}

func (c *Coordinator) handleWakeEvent(ev wake.Event) {
	if c.state != StateAsleep {
		return
	}
	metrics.WakeDetections.WithLabelValues(ev.Name).Inc()
	c.speaker.PlayWakeChime()
	c.startCommandCapture()
}

func (c *Coordinator) startCommandCapture() {
	if c.curSession == "" {
		c.curSession = c.telStartSession()
		c.sessionAdHoc = true
	}
	c.curTurn = c.telStartTurn(c.curSession)
	c.turnStarted = time.Now()

	ch := make(chan audio.Frame, 64)
	if err := c.mic.StartStreaming(ch); err != nil {
		slog.Error("dialogue: failed to start command capture", "error", err)
		c.finishSession(recognizer.Result{})
		return
	}
	c.micCh = ch
	c.curListener = listener.New(c.cfg.VAD, c.classifier)
	c.setState(StateAwake)
	go c.pumpCommandFrames(ch, c.curListener)
}

func (c *Coordinator) pumpCommandFrames(ch chan audio.Frame, l *listener.Listener) {
	for f := range ch {
		if l.PushFrame(f) {
			c.mb.TrySend(message{voiceCommand: &voiceCommandMsg{l.Result()}})
			return
		}
		if f.IsEndOfStream() {
			return
		}
	}
}

func (c *Coordinator) handleVoiceCommand(cmd listener.VoiceCommand) {
	if c.state != StateAwake {
		return
	}
	c.mic.StopStreaming(c.micCh)
	c.micCh = nil
	c.curListener = nil

	outcome := "done"
	if cmd.TimedOut {
		outcome = "timeout"
	}
	metrics.CommandsCaptured.WithLabelValues(outcome).Inc()
	c.speaker.PlayCapturedChime()

	c.setState(StateDecoding)
	c.handleIntent = cmd.HandleIntent
	turnID, started := c.curTurn, time.Now()
	go func() {
		result, err := c.dec.Transcribe(context.Background(), cmd.WAV)
		status, errMsg := "ok", ""
		if err != nil {
			status, errMsg = "error", err.Error()
		}
		c.telRecordSpan(turnID, "decode", started, float64(time.Since(started).Milliseconds()), "", result.Text, status, errMsg)
		c.mb.Send(message{transcribed: &transcribedMsg{result: result, err: err}})
	}()
}

func (c *Coordinator) handleTranscribed(m *transcribedMsg) {
	if c.state != StateDecoding {
		return
	}
	if m.err != nil {
		slog.Error("dialogue: transcription failed", "error", m.err)
		c.finishSession(recognizer.Result{})
		return
	}

	c.setState(StateRecognizing)
	turnID, started := c.curTurn, time.Now()
	go func() {
		result, err := c.rec.Recognize(m.result.Text, m.result.Confidence)
		status, errMsg := "ok", ""
		if err != nil {
			status, errMsg = "error", err.Error()
		}
		c.telRecordSpan(turnID, "recognize", started, float64(time.Since(started).Milliseconds()), m.result.Text, result.Intent.Name, status, errMsg)
		c.mb.Send(message{recognized: &recognizedMsg{result: result, err: err}})
	}()
}

func (c *Coordinator) handleRecognized(m *recognizedMsg) {
	if c.state != StateRecognizing {
		return
	}
	if m.err != nil {
		slog.Error("dialogue: recognition failed", "error", m.err)
		m.result = recognizer.Result{}
	}
	metrics.IntentConfidence.Observe(m.result.Confidence)

	if m.result.Empty() || !c.handleIntent {
		c.finishSession(m.result)
		return
	}

	c.setState(StateHandling)
	turnID, started := c.curTurn, time.Now()
	go func() {
		handled := c.hdl.Handle(context.Background(), m.result)
		c.telRecordSpan(turnID, "handle", started, float64(time.Since(started).Milliseconds()), m.result.Intent.Name, "", "ok", "")
		c.mb.Send(message{handled: &handledMsg{result: handled}})
	}()
}

func (c *Coordinator) handleHandled(result recognizer.Result) {
	if c.state != StateHandling {
		return
	}
	c.finishSession(result)
}

// finishSession delivers the final intent result to whoever originally
// requested this capture (if any) and always returns the coordinator to
// ready; ready re-consults Config.ListenOnStart to decide whether to
// re-arm wake listening, the same way the session's entry into ready
// always does (handleLoad), rather than branching on whether this turn
// happened to be wake-triggered.
func (c *Coordinator) finishSession(result recognizer.Result) {
	if c.curTurn != "" {
		status := "ok"
		if result.Empty() {
			status = "no_intent"
		}
		c.telEndTurn(c.curTurn, float64(time.Since(c.turnStarted).Milliseconds()), result.Confidence, result.Text, result.Intent.Name, status)
		c.curTurn = ""
	}
	if c.sessionAdHoc {
		c.telEndSession(c.curSession)
		c.curSession = ""
		c.sessionAdHoc = false
	}

	if c.pendingReply != nil {
		select {
		case c.pendingReply <- result:
		default:
		}
		c.pendingReply = nil
	}
	if c.wakeSink != nil {
		c.wakeDet.Stop(c.wakeSink)
		c.wakeSink = nil
	}
	c.setState(StateReady)
	if c.cfg.ListenOnStart {
		c.enterAsleep(nil)
	}
}

func (c *Coordinator) handleTranscribeRequest(m *transcribeRequestMsg) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		result, err := c.dec.Transcribe(ctx, m.wav)
		m.reply <- transcribeReply{result, err}
	}()
}

func (c *Coordinator) handleRecognizeRequest(m *recognizeRequestMsg) {
	go func() {
		result, err := c.rec.Recognize(m.text, m.speechConfidence)
		m.reply <- recognizeReply{result, err}
	}()
}

func (c *Coordinator) handleSpeakRequest(m *speakRequestMsg) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		m.reply <- c.speaker.Speak(ctx, m.text)
	}()
}

func (c *Coordinator) handlePronunciationsRequest(m *pronunciationsRequestMsg) {
	if c.dict == nil {
		m.reply <- pronunciationsReply{nil, fmt.Errorf("dialogue: no pronunciation dictionary configured")}
		return
	}
	m.reply <- pronunciationsReply{c.dict.Lookup(m.words), nil}
}

// handleStartTraining pauses wake listening and begins the three training
// sub-states on a background goroutine, per spec.md §4.7/§5 ("pause wake,
// drive the training pipeline through three sub-states"; "cannot be in any
// training_* state while in any session state").
func (c *Coordinator) handleStartTraining(m *startTrainingMsg) {
	switch c.state {
	case StateTrainingSentences, StateTrainingSpeech, StateTrainingIntent:
		m.ack <- fmt.Errorf("dialogue: training already in progress")
		return
	}

	if c.wakeSink != nil {
		c.wakeDet.Stop(c.wakeSink)
		c.wakeSink = nil
	}

	c.trainer = m.runner
	c.trainReply = m.reply
	c.setState(StateTrainingSentences)
	m.ack <- nil

	go c.runTrainingStage(StateTrainingSentences, m.runner.TrainSentences)
}

func (c *Coordinator) runTrainingStage(stage State, run func(context.Context) error) {
	runID := c.telStartTrainingRun(string(stage))
	start := time.Now()
	err := run(context.Background())
	elapsedMs := float64(time.Since(start).Milliseconds())
	metrics.TrainTaskDuration.WithLabelValues(string(stage)).Observe(elapsedMs / 1000)

	status, errMsg := "ok", ""
	if err != nil {
		status, errMsg = "error", err.Error()
	}
	c.telEndTrainingRun(runID, elapsedMs, status, errMsg)

	next := nextTrainingStage(stage)
	c.mb.Send(message{trainingStageDone: &trainingStageDoneMsg{next: next, err: err}})
}

func nextTrainingStage(stage State) State {
	switch stage {
	case StateTrainingSentences:
		return StateTrainingSpeech
	case StateTrainingSpeech:
		return StateTrainingIntent
	default:
		return StateReady
	}
}

func (c *Coordinator) handleTrainingStageDone(m *trainingStageDoneMsg) {
	if m.err != nil {
		slog.Error("dialogue: training stage failed", "state", string(c.state), "error", m.err)
		c.setState(StateReady)
		if c.trainReply != nil {
			c.trainReply <- m.err
			c.trainReply = nil
		}
		return
	}

	if m.next == StateReady {
		c.reloadAfterTraining()
		c.setState(StateReady)
		if c.trainReply != nil {
			c.trainReply <- nil
			c.trainReply = nil
		}
		return
	}

	c.setState(m.next)
	var run func(context.Context) error
	switch m.next {
	case StateTrainingSpeech:
		run = c.trainer.TrainSpeech
	case StateTrainingIntent:
		run = c.trainer.TrainIntent
	}
	go c.runTrainingStage(m.next, run)
}

// reloadAfterTraining reloads the decoder's backend in place
// (internal/decoder.Decoder.Reload) so it picks up retrained artifacts.
// The wake detector and recognizer are neither reloaded nor replaced
// here: they keep the artifacts they were constructed with, since the
// WakeDetector and Recognizer interfaces expose no Reload method.
func (c *Coordinator) reloadAfterTraining() {
	if err := c.dec.Reload(context.Background()); err != nil {
		slog.Error("dialogue: decoder reload after training failed", "error", err)
		c.problem = map[string]error{"decoder": err}
	}
}
