// Package recognizer implements the Intent Recognizer (spec.md §4.5, L5):
// maps a transcript and its speech confidence to a structured IntentResult,
// via a pluggable Strategy.
package recognizer

// Entity is one recognized slot value (spec.md §3 Intent Result).
type Entity struct {
	Entity     string  `json:"entity"`
	Value      string  `json:"value"`
	Start      *int    `json:"start,omitempty"`
	End        *int    `json:"end,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Intent names the recognized intent and the recognizer's confidence in
// that label. Error is set by the Intent Handler (spec.md §4.6) when
// forwarding the intent to the home-automation collaborator fails; it is
// never set by a Strategy.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Result is the Intent Result data shape (spec.md §3 / §4.5): "all
// strategies return the same result shape". The empty-intent sentinel is
// Intent.Name == "" with Entities == nil/empty.
type Result struct {
	Text             string   `json:"text"`
	Confidence       float64  `json:"confidence"`
	Intent           Intent   `json:"intent"`
	Entities         []Entity `json:"entities"`
	RawText          string   `json:"raw_text"`
	SpeechConfidence float64  `json:"speech_confidence"`
}

// Empty reports whether r is the empty-intent sentinel.
func (r Result) Empty() bool { return r.Intent.Name == "" }

// emptyResult builds the sentinel result for "no intent recognized",
// carrying forward the transcript and speech confidence as spec.md
// requires even on a miss.
func emptyResult(text string, speechConfidence float64) Result {
	return Result{
		Text:             text,
		RawText:          text,
		SpeechConfidence: speechConfidence,
		Entities:         []Entity{},
	}
}

// Strategy is the pluggable recognition backend (spec.md §4.5: FST
// acceptor, fuzzy string match, keyword/rule engine, remote/HTTP parser,
// command subprocess — all presenting this one interface).
type Strategy interface {
	Recognize(text string, speechConfidence float64) (Result, error)
}

// Recognizer is the L5 Intent Recognizer. Like the decoder, it holds no
// per-call session state, so it is a plain wrapper rather than an actor;
// the dialogue coordinator serializes its own calls, and out-of-band
// "recognize" requests may call it directly from any coordinator state.
type Recognizer struct {
	strategy Strategy
}

// New creates a recognizer over the given strategy.
func New(strategy Strategy) *Recognizer { return &Recognizer{strategy: strategy} }

// Recognize maps text (with its speech confidence from the decoder) to an
// intent result.
func (r *Recognizer) Recognize(text string, speechConfidence float64) (Result, error) {
	result, err := r.strategy.Recognize(text, speechConfidence)
	if err != nil {
		return emptyResult(text, speechConfidence), err
	}
	return result, nil
}
