package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vocalmind/vocalmind/internal/audio"
	"github.com/vocalmind/vocalmind/internal/decoder"
	"github.com/vocalmind/vocalmind/internal/recognizer"
	"github.com/vocalmind/vocalmind/internal/vad"
	"github.com/vocalmind/vocalmind/internal/wake"
)

type fakeMic struct {
	frames []audio.Frame
}

func (m *fakeMic) StartStreaming(ch chan audio.Frame) error {
	go func() {
		for _, f := range m.frames {
			ch <- f
		}
	}()
	return nil
}

func (m *fakeMic) StopStreaming(ch chan audio.Frame) {}

type fakeWake struct {
	listenErr error
	problem   error
	sink      chan wake.Event
}

func (w *fakeWake) Listen(sink chan wake.Event, record bool) error {
	w.sink = sink
	return w.listenErr
}
func (w *fakeWake) Stop(sink chan wake.Event) {}
func (w *fakeWake) Problem() error            { return w.problem }

type fakeDecoder struct {
	result     decoder.Result
	err        error
	reloadErr  error
	reloadCall int
}

func (d *fakeDecoder) Transcribe(ctx context.Context, wav []byte) (decoder.Result, error) {
	return d.result, d.err
}
func (d *fakeDecoder) Reload(ctx context.Context) error {
	d.reloadCall++
	return d.reloadErr
}

type fakeRecognizer struct {
	result recognizer.Result
	err    error
}

func (r *fakeRecognizer) Recognize(text string, speechConfidence float64) (recognizer.Result, error) {
	return r.result, r.err
}

type fakeHandler struct {
	called bool
}

func (h *fakeHandler) Handle(ctx context.Context, result recognizer.Result) recognizer.Result {
	h.called = true
	return result
}

type fakeSpeaker struct {
	wakeChimes, capturedChimes int
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error { return nil }
func (s *fakeSpeaker) PlayWakeChime()                               { s.wakeChimes++ }
func (s *fakeSpeaker) PlayCapturedChime()                           { s.capturedChimes++ }

// alwaysSpeechClassifier treats every frame as speech so a short scripted
// frame sequence finishes a Command Listener quickly in tests.
type alwaysSpeechClassifier struct{}

func (alwaysSpeechClassifier) IsSpeech(f audio.Frame) bool { return !f.IsEndOfStream() }

// fakeTelemetry records every call made to it, in order, for assertions
// about session/turn/span lifecycle wiring.
type fakeTelemetry struct {
	calls []string
}

func (tel *fakeTelemetry) StartSession() string {
	tel.calls = append(tel.calls, "StartSession")
	return "session-1"
}
func (tel *fakeTelemetry) EndSession(sessionID string) {
	tel.calls = append(tel.calls, "EndSession:"+sessionID)
}
func (tel *fakeTelemetry) StartTurn(sessionID string) string {
	tel.calls = append(tel.calls, "StartTurn:"+sessionID)
	return "turn-1"
}
func (tel *fakeTelemetry) EndTurn(turnID string, durationMs, confidence float64, transcript, intent, status string) {
	tel.calls = append(tel.calls, "EndTurn:"+turnID+":"+status)
}
func (tel *fakeTelemetry) RecordSpan(turnID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string) {
	tel.calls = append(tel.calls, "RecordSpan:"+turnID+":"+name)
}
func (tel *fakeTelemetry) StartTrainingRun(stage string) string {
	tel.calls = append(tel.calls, "StartTrainingRun:"+stage)
	return "run-1"
}
func (tel *fakeTelemetry) EndTrainingRun(id string, durationMs float64, status, errMsg string) {
	tel.calls = append(tel.calls, "EndTrainingRun:"+id+":"+status)
}

func indexOf(calls []string, prefix string) int {
	for i, c := range calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			return i
		}
	}
	return -1
}

func testVADConfig() vad.Config {
	cfg := vad.Config{
		SampleRate:          16000,
		FrameMs:             30,
		MinCommandSec:       0.03,
		SilenceTrailingSec:  0.03,
		MaxCommandSec:       3.0,
		LeadingSpeechFrames: 1,
	}
	cfg.Derive()
	return cfg
}

func waitForState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if c.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %s, last seen %s", want, c.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLoadCollectsProblemsFromCollaborators(t *testing.T) {
	wakeDet := &fakeWake{problem: errors.New("model missing")}
	dec := &fakeDecoder{}
	c := New(Config{}, &fakeMic{}, wakeDet, dec, &fakeRecognizer{}, &fakeHandler{}, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()

	problems := c.Load(context.Background())
	if problems["wake"] == nil {
		t.Fatal("expected wake problem to be surfaced")
	}
	if c.State() != StateReady {
		t.Fatalf("state = %s, want ready after load", c.State())
	}
}

func TestWakeDetectedDrivesFullSessionToHandling(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {1, 2}, audio.Frame{}}
	wakeDet := &fakeWake{}
	dec := &fakeDecoder{result: decoder.Result{Text: "turn on the kitchen light", Confidence: 0.9}}
	rec := &fakeRecognizer{result: recognizer.Result{
		Intent: recognizer.Intent{Name: "ChangeLightState", Confidence: 0.9},
	}}
	hdl := &fakeHandler{}
	speaker := &fakeSpeaker{}
	cfg := Config{VAD: testVADConfig()}

	c := New(cfg, &fakeMic{frames: frames}, wakeDet, dec, rec, hdl, speaker, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()
	c.Load(context.Background())

	if err := c.ListenForWake(); err != nil {
		t.Fatalf("ListenForWake: %v", err)
	}
	waitForState(t, c, StateAsleep)

	wakeDet.sink <- wake.Event{Name: "hey rhasspy", Detected: true}
	waitForState(t, c, StateAwake)

	deadline := time.After(2 * time.Second)
	for !hdl.called {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for handler to be invoked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if speaker.wakeChimes != 1 {
		t.Fatalf("wake chimes = %d, want 1", speaker.wakeChimes)
	}
	if speaker.capturedChimes != 1 {
		t.Fatalf("captured chimes = %d, want 1", speaker.capturedChimes)
	}
	if !hdl.called {
		t.Fatal("expected handler to be invoked for a non-empty intent")
	}
	// Config.ListenOnStart is false, so handling a wake-triggered turn
	// returns to ready rather than re-arming wake listening (spec.md:126,
	// spec.md:228).
	waitForState(t, c, StateReady)
}

func TestWakeDetectedRecordsSessionTurnAndSpans(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {1, 2}, audio.Frame{}}
	wakeDet := &fakeWake{}
	dec := &fakeDecoder{result: decoder.Result{Text: "turn on the kitchen light", Confidence: 0.9}}
	rec := &fakeRecognizer{result: recognizer.Result{
		Intent: recognizer.Intent{Name: "ChangeLightState", Confidence: 0.9},
	}}
	hdl := &fakeHandler{}
	tel := &fakeTelemetry{}
	cfg := Config{VAD: testVADConfig()}

	c := New(cfg, &fakeMic{frames: frames}, wakeDet, dec, rec, hdl, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, tel)
	defer c.Close()
	c.Load(context.Background())

	if err := c.ListenForWake(); err != nil {
		t.Fatalf("ListenForWake: %v", err)
	}
	waitForState(t, c, StateAsleep)

	wakeDet.sink <- wake.Event{Name: "hey rhasspy", Detected: true}
	waitForState(t, c, StateAwake)

	deadline := time.After(2 * time.Second)
	for !hdl.called {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for handler to be invoked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	waitForState(t, c, StateReady)

	// Give the async decode/recognize/handle spans time to land; they run
	// in goroutines independent of the state machine's transition back to
	// StateReady.
	deadline = time.After(2 * time.Second)
	for indexOf(tel.calls, "EndTurn:") == -1 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for EndTurn, calls so far: %v", tel.calls)
		case <-time.After(5 * time.Millisecond):
		}
	}

	startSession := indexOf(tel.calls, "StartSession")
	startTurn := indexOf(tel.calls, "StartTurn:")
	decodeSpan := indexOf(tel.calls, "RecordSpan:turn-1:decode")
	recognizeSpan := indexOf(tel.calls, "RecordSpan:turn-1:recognize")
	handleSpan := indexOf(tel.calls, "RecordSpan:turn-1:handle")
	endTurn := indexOf(tel.calls, "EndTurn:")

	if startSession == -1 || startTurn == -1 || decodeSpan == -1 || recognizeSpan == -1 || handleSpan == -1 || endTurn == -1 {
		t.Fatalf("missing expected telemetry calls: %v", tel.calls)
	}
	if !(startSession < startTurn && startTurn < decodeSpan && decodeSpan < recognizeSpan && recognizeSpan < handleSpan && handleSpan < endTurn) {
		t.Fatalf("telemetry calls out of order: %v", tel.calls)
	}
	if indexOf(tel.calls, "EndTurn:turn-1:ok") == -1 {
		t.Fatalf("expected EndTurn with status ok, got: %v", tel.calls)
	}
	// the listening session itself stays open across this one turn, since
	// it was opened explicitly by ListenForWake/enterAsleep rather than an
	// ad-hoc TriggerCommand.
	if indexOf(tel.calls, "EndSession:") != -1 {
		t.Fatalf("did not expect the wake-driven session to be ended after a single turn: %v", tel.calls)
	}
}

func TestTriggerCommandUsesAdHocSessionAndClosesIt(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {1, 2}, audio.Frame{}}
	wakeDet := &fakeWake{}
	dec := &fakeDecoder{result: decoder.Result{Text: "what time is it", Confidence: 0.9}}
	rec := &fakeRecognizer{result: recognizer.Result{Intent: recognizer.Intent{Name: "GetTime", Confidence: 0.9}}}
	hdl := &fakeHandler{}
	tel := &fakeTelemetry{}
	cfg := Config{VAD: testVADConfig()}

	c := New(cfg, &fakeMic{frames: frames}, wakeDet, dec, rec, hdl, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, tel)
	defer c.Close()
	c.Load(context.Background())

	reply := make(chan recognizer.Result, 1)
	if err := c.TriggerCommand(reply); err != nil {
		t.Fatalf("TriggerCommand: %v", err)
	}

	select {
	case <-reply:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	deadline := time.After(2 * time.Second)
	for indexOf(tel.calls, "EndSession:") == -1 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for ad-hoc session to close, calls so far: %v", tel.calls)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if indexOf(tel.calls, "StartSession") == -1 {
		t.Fatalf("expected an ad-hoc session to be started: %v", tel.calls)
	}
}

func TestEmptyIntentSkipsHandler(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {1, 2}, audio.Frame{}}
	wakeDet := &fakeWake{}
	dec := &fakeDecoder{result: decoder.Result{Text: "gibberish", Confidence: 0.2}}
	rec := &fakeRecognizer{result: recognizer.Result{}}
	hdl := &fakeHandler{}
	cfg := Config{VAD: testVADConfig()}

	c := New(cfg, &fakeMic{frames: frames}, wakeDet, dec, rec, hdl, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()
	c.Load(context.Background())

	reply := make(chan recognizer.Result, 1)
	if err := c.TriggerCommand(reply); err != nil {
		t.Fatalf("TriggerCommand: %v", err)
	}

	select {
	case result := <-reply:
		if !result.Empty() {
			t.Fatalf("expected empty intent, got %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	if hdl.called {
		t.Fatal("handler must not be invoked for an empty intent")
	}
	waitForState(t, c, StateReady)
}

func TestListenOnStartReArmsAfterHandling(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {1, 2}, audio.Frame{}}
	wakeDet := &fakeWake{}
	dec := &fakeDecoder{result: decoder.Result{Text: "turn on the kitchen light", Confidence: 0.9}}
	rec := &fakeRecognizer{result: recognizer.Result{
		Intent: recognizer.Intent{Name: "ChangeLightState", Confidence: 0.9},
	}}
	hdl := &fakeHandler{}
	cfg := Config{VAD: testVADConfig(), ListenOnStart: true}

	c := New(cfg, &fakeMic{frames: frames}, wakeDet, dec, rec, hdl, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()
	c.Load(context.Background())
	waitForState(t, c, StateAsleep)

	wakeDet.sink <- wake.Event{Name: "hey rhasspy", Detected: true}
	waitForState(t, c, StateAwake)

	deadline := time.After(2 * time.Second)
	for !hdl.called {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for handler to be invoked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// ListenOnStart re-checks on every return to ready, so handling a
	// wake-triggered turn re-arms wake listening instead of staying ready.
	waitForState(t, c, StateAsleep)
}

func TestOutOfBandRecognizeDoesNotDisturbState(t *testing.T) {
	wakeDet := &fakeWake{}
	rec := &fakeRecognizer{result: recognizer.Result{Intent: recognizer.Intent{Name: "GetTime"}}}
	c := New(Config{}, &fakeMic{}, wakeDet, &fakeDecoder{}, rec, &fakeHandler{}, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()
	c.Load(context.Background())

	if err := c.ListenForWake(); err != nil {
		t.Fatalf("ListenForWake: %v", err)
	}
	waitForState(t, c, StateAsleep)

	result, err := c.Recognize("what time is it", 1.0)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if result.Intent.Name != "GetTime" {
		t.Fatalf("intent = %q, want GetTime", result.Intent.Name)
	}
	if c.State() != StateAsleep {
		t.Fatalf("state = %s, want asleep (out-of-band request must not disturb session state)", c.State())
	}
}

type fakeTrainer struct {
	sentencesCalled, speechCalled, intentCalled bool
	failStage                                   string
}

func (tr *fakeTrainer) TrainSentences(ctx context.Context) error {
	tr.sentencesCalled = true
	if tr.failStage == "sentences" {
		return errors.New("bad grammar")
	}
	return nil
}
func (tr *fakeTrainer) TrainSpeech(ctx context.Context) error {
	tr.speechCalled = true
	return nil
}
func (tr *fakeTrainer) TrainIntent(ctx context.Context) error {
	tr.intentCalled = true
	return nil
}

func TestStartTrainingRunsAllStagesAndReturnsToReady(t *testing.T) {
	dec := &fakeDecoder{}
	c := New(Config{}, &fakeMic{}, &fakeWake{}, dec, &fakeRecognizer{}, &fakeHandler{}, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()

	tr := &fakeTrainer{}
	done := make(chan error, 1)
	if err := c.StartTraining(tr, done); err != nil {
		t.Fatalf("StartTraining: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("training failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for training to finish")
	}

	if !tr.sentencesCalled || !tr.speechCalled || !tr.intentCalled {
		t.Fatalf("expected all three training stages to run: %+v", tr)
	}
	if dec.reloadCall == 0 {
		t.Fatal("expected decoder reload after successful training")
	}
	waitForState(t, c, StateReady)
}

func TestListenForWakeRefusedDuringTraining(t *testing.T) {
	c := New(Config{}, &fakeMic{}, &fakeWake{}, &fakeDecoder{}, &fakeRecognizer{}, &fakeHandler{}, &fakeSpeaker{}, nil, alwaysSpeechClassifier{}, nil)
	defer c.Close()

	block := make(chan struct{})
	tr := &blockingTrainer{block: block}
	done := make(chan error, 1)
	if err := c.StartTraining(tr, done); err != nil {
		t.Fatalf("StartTraining: %v", err)
	}
	waitForState(t, c, StateTrainingSentences)

	if err := c.ListenForWake(); err == nil {
		t.Fatal("expected listen_for_wake to be refused while training")
	}

	close(block)
	<-done
}

type blockingTrainer struct{ block chan struct{} }

func (b *blockingTrainer) TrainSentences(ctx context.Context) error { <-b.block; return nil }
func (b *blockingTrainer) TrainSpeech(ctx context.Context) error    { return nil }
func (b *blockingTrainer) TrainIntent(ctx context.Context) error    { return nil }
