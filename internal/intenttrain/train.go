package intenttrain

import (
	"context"
	"fmt"
	"io"

	"github.com/vocalmind/vocalmind/internal/fst"
)

// Variant selects which recognizer strategy's artifact to produce (spec.md
// §4.12: "(a) nothing beyond the intent FST ... (b) a JSON of example
// sentences ... (c) a config file of required/optional tokens ... (d) an
// HTTP POST of a Markdown/YAML-formatted example set").
type Variant int

const (
	VariantFST Variant = iota
	VariantFuzzy
	VariantKeyword
	VariantRemote
)

// Config drives one training pass across whichever recognizer strategy is
// configured.
type Config struct {
	Variant Variant
	Sample  Options

	// ExamplesOut receives the fuzzy strategy's JSON artifact; required
	// when Variant == VariantFuzzy.
	ExamplesOut io.Writer

	// RulesOut receives the keyword strategy's JSON artifact; required
	// when Variant == VariantKeyword.
	RulesOut io.Writer

	// Remote posts the Markdown/YAML example set; required when
	// Variant == VariantRemote.
	Remote *RemoteTrainer
}

// Train produces the artifact Config.Variant calls for from a freshly
// compiled set of per-intent FSTs (internal/fstcompile.CompileEach's
// result). VariantFST is a no-op: the FST acceptor strategy is driven
// directly by the union FST internal/fstcompile.CompileAll already
// produces, so T5 has nothing further to do for it.
func Train(ctx context.Context, perIntent map[string]*fst.FST, names []string, cfg Config) error {
	switch cfg.Variant {
	case VariantFST:
		return nil

	case VariantFuzzy:
		sentences, _ := SampleAll(perIntent, names, cfg.Sample)
		examples := BuildExamples(sentences, names)
		if cfg.ExamplesOut == nil {
			return fmt.Errorf("intenttrain: fuzzy variant requires ExamplesOut")
		}
		return WriteExamplesJSON(cfg.ExamplesOut, examples)

	case VariantKeyword:
		sentences, _ := SampleAll(perIntent, names, cfg.Sample)
		rules := BuildRules(sentences, names)
		if cfg.RulesOut == nil {
			return fmt.Errorf("intenttrain: keyword variant requires RulesOut")
		}
		return WriteRulesJSON(cfg.RulesOut, rules)

	case VariantRemote:
		sentences, _ := SampleAll(perIntent, names, cfg.Sample)
		if cfg.Remote == nil {
			return fmt.Errorf("intenttrain: remote variant requires a RemoteTrainer")
		}
		return cfg.Remote.Train(ctx, sentences, names)

	default:
		return fmt.Errorf("intenttrain: unknown variant %d", cfg.Variant)
	}
}
