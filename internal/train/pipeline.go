// Pipeline wires the Sentence Grammar Compiler (T1), JSGF→FST Compiler
// (T2), Vocabulary & Dictionary Builder (T3), Language Model Builder (T4)
// and Intent-Recognizer Trainer (T5) into the three training sub-states
// internal/dialogue.Coordinator drives (spec.md §4.7's training states,
// §6's task graph): TrainSentences runs T1+T2 (the sentence grammar and
// the intent FST both describe "what can be said" and are consumed
// together by the decoder's grammar constraint); TrainSpeech runs T3+T4
// (the dictionary and language model the decoder reloads); TrainIntent
// runs T5 (the artifact the configured recognizer strategy reloads).
//
// Grounded on original_source/rhasspy/train/__init__.py's task_grammars/
// task_grammar_fsts/task_mixed_language_model/... pipeline, which wires
// the same five stages through the same file_dep/targets shape this
// package's Task/Runner (task.go) reimplements natively.
package train

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vocalmind/vocalmind/internal/dict"
	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/fstcompile"
	"github.com/vocalmind/vocalmind/internal/grammar"
	"github.com/vocalmind/vocalmind/internal/intenttrain"
	"github.com/vocalmind/vocalmind/internal/jsgf"
	"github.com/vocalmind/vocalmind/internal/lm"
)

// Config holds every file path and knob the pipeline's five stages need.
// Paths left empty disable the feature they gate (BaseDictionaryPath,
// PhonemeMapPath, base-LM interpolation).
type Config struct {
	// T1/T2
	SentencesPath string // input: the [Intent]-sectioned sentence grammar
	GrammarDir    string // output: one <Intent>.jsgf file per intent
	FSTStampPath  string // freshness marker for the compiled FST (no on-disk FST binary is produced; spec.md's OpenFST serialization is out of this teaching scope per the same simplification BaseLMCache documents for ARPA-vs-FST)
	Slots         fstcompile.SlotLoader
	WordCase      fstcompile.WordCase

	// T3
	WakeKeyphrase        []string
	BaseDictionaryPath   string
	CustomDictionaryPath string
	PhonemeMapPath       string
	CustomWordsOutPath   string // where G2P-guessed pronunciations are appended (spec.md §4.10)
	DictionaryOutPath    string
	G2P                  dict.G2PModel
	DictOptions          dict.BuildOptions
	IncludeBaseVocab     bool

	// T4
	LMOrder              int
	LMMaxSentences       int
	BaseLM               *lm.BaseLMCache
	LMAlpha              float64
	LanguageModelOutPath string

	// T5
	IntentTrain intenttrain.Config

	Runner *Runner
}

// Pipeline implements internal/dialogue.TrainRunner. State compiled by
// TrainSentences (the union FST, per-intent FSTs, intent names, alias
// map) is cached in memory for TrainSpeech/TrainIntent to reuse within the
// same run. When TrainSentences finds T1/T2's targets already fresh and
// skips them, it still recomputes that state in memory from the grammar
// files on disk, touching no target file. TrainSpeech and TrainIntent do
// not recompute it: they return an error if TrainSentences has not run.
type Pipeline struct {
	cfg Config

	grammars  map[string]*jsgf.Grammar
	perIntent map[string]*fst.FST
	union     *fst.FST
	names     []string
	aliases   fstcompile.AliasMap

	metrics Metrics
}

// Metrics records the last build's diagnostic counters (spec.md §8's
// observable training properties).
type Metrics struct {
	UnknownWords []string
	Truncated    bool // the intent FST's language exceeded LMMaxSentences when building the language model
}

// NewPipeline constructs a Pipeline ready to drive TrainSentences/
// TrainSpeech/TrainIntent in sequence.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Metrics returns the diagnostics from the most recent training pass.
func (p *Pipeline) Metrics() Metrics { return p.metrics }

// TrainSentences runs T1 (Sentence Grammar Compiler) and T2 (JSGF→FST
// Compiler), in that dependency order.
func (p *Pipeline) TrainSentences(ctx context.Context) error {
	intents, err := scanIntentNames(p.cfg.SentencesPath)
	if err != nil {
		return fmt.Errorf("train: scanning intents: %w", err)
	}
	grammarTargets := make([]string, len(intents))
	for i, name := range intents {
		grammarTargets[i] = filepath.Join(p.cfg.GrammarDir, name+".jsgf")
	}

	tasks := []Task{
		{
			Name:    "sentence_grammar_compiler",
			FileDep: []string{p.cfg.SentencesPath},
			Targets: grammarTargets,
			Run: func(ctx context.Context) error {
				f, err := os.Open(p.cfg.SentencesPath)
				if err != nil {
					return fmt.Errorf("opening sentences file: %w", err)
				}
				defer f.Close()

				grammars, err := grammar.Compile(f)
				if err != nil {
					return fmt.Errorf("compiling grammar: %w", err)
				}
				if err := os.MkdirAll(p.cfg.GrammarDir, 0o755); err != nil {
					return err
				}
				if err := grammar.Write(p.cfg.GrammarDir, grammars); err != nil {
					return err
				}
				p.grammars = grammars
				return nil
			},
		},
		{
			Name:    "jsgf_fst_compiler",
			FileDep: grammarTargets,
			Targets: []string{p.cfg.FSTStampPath},
			Run: func(ctx context.Context) error {
				if p.grammars == nil {
					grammars, err := loadGrammarDir(p.cfg.GrammarDir)
					if err != nil {
						return fmt.Errorf("reloading grammar dir: %w", err)
					}
					p.grammars = grammars
				}
				if err := p.compileFSTs(); err != nil {
					return err
				}
				return writeStamp(p.cfg.FSTStampPath, p.names)
			},
		},
	}

	if err := p.cfg.Runner.Run(ctx, tasks); err != nil {
		return err
	}

	// Either task may have been skipped as already fresh; ensure in-memory
	// state is populated regardless, recompiled from disk if need be.
	if p.union == nil {
		if p.grammars == nil {
			grammars, err := loadGrammarDir(p.cfg.GrammarDir)
			if err != nil {
				return fmt.Errorf("train: reloading grammar dir: %w", err)
			}
			p.grammars = grammars
		}
		if err := p.compileFSTs(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) compileFSTs() error {
	perIntent, aliases, names, err := fstcompile.CompileEach(p.grammars, p.cfg.Slots, fstcompile.Options{WordCase: p.cfg.WordCase})
	if err != nil {
		return fmt.Errorf("compiling intent FSTs: %w", err)
	}
	union, _, err := fstcompile.CompileAll(p.grammars, p.cfg.Slots, fstcompile.Options{WordCase: p.cfg.WordCase})
	if err != nil {
		return fmt.Errorf("compiling union FST: %w", err)
	}
	p.perIntent, p.aliases, p.names, p.union = perIntent, aliases, names, union
	return nil
}

// CompileUnionFST loads every "<dir>/<Intent>.jsgf" file and compiles them
// into a single union FST plus alias map, the same compilation TrainSentences
// performs, without requiring a Pipeline or a Runner. cmd/assistant uses this
// to bootstrap (or reload after training) internal/recognizer.FSTStrategy
// from whatever grammar files are already on disk.
func CompileUnionFST(grammarDir string, slots fstcompile.SlotLoader, wordCase fstcompile.WordCase) (*fst.FST, fstcompile.AliasMap, error) {
	grammars, err := loadGrammarDir(grammarDir)
	if err != nil {
		return nil, nil, fmt.Errorf("train: loading grammar dir: %w", err)
	}
	union, aliases, err := fstcompile.CompileAll(grammars, slots, fstcompile.Options{WordCase: wordCase})
	if err != nil {
		return nil, nil, fmt.Errorf("train: compiling union FST: %w", err)
	}
	return union, aliases, nil
}

// Aliases returns the entity-normalisation alias map compiled by the most
// recent TrainSentences, for wiring into internal/recognizer.FSTStrategy.
func (p *Pipeline) Aliases() fstcompile.AliasMap { return p.aliases }

// UnionFST returns the merged intent FST compiled by the most recent
// TrainSentences, for wiring into the decoder's grammar constraint and
// internal/recognizer.FSTStrategy.
func (p *Pipeline) UnionFST() *fst.FST { return p.union }

// TrainSpeech runs T3 (Vocabulary & Dictionary Builder) and T4 (Language
// Model Builder).
func (p *Pipeline) TrainSpeech(ctx context.Context) error {
	if p.union == nil {
		return fmt.Errorf("train: TrainSpeech called before TrainSentences produced an FST")
	}

	tasks := []Task{
		{
			Name:    "vocabulary_dictionary_builder",
			FileDep: []string{p.cfg.FSTStampPath, p.cfg.BaseDictionaryPath, p.cfg.CustomDictionaryPath},
			Targets: []string{p.cfg.DictionaryOutPath},
			Run:     func(ctx context.Context) error { return p.buildDictionary() },
		},
		{
			Name:    "language_model_builder",
			FileDep: []string{p.cfg.FSTStampPath, p.cfg.BaseLMPath()},
			Targets: []string{p.cfg.LanguageModelOutPath},
			Run:     func(ctx context.Context) error { return p.buildLanguageModel(ctx) },
		},
	}
	return p.cfg.Runner.Run(ctx, tasks)
}

// BaseLMPath exposes the configured base-LM cache's path as a freshness
// input, or "" when interpolation is disabled.
func (c Config) BaseLMPath() string {
	if c.BaseLM == nil {
		return ""
	}
	return c.BaseLM.Path
}

func (p *Pipeline) buildDictionary() error {
	base, err := readDictionaryFile(p.cfg.BaseDictionaryPath)
	if err != nil {
		return fmt.Errorf("reading base dictionary: %w", err)
	}
	custom, err := readDictionaryFile(p.cfg.CustomDictionaryPath)
	if err != nil {
		return fmt.Errorf("reading custom dictionary: %w", err)
	}
	if p.cfg.PhonemeMapPath != "" {
		m, err := readPhonemeMapFile(p.cfg.PhonemeMapPath)
		if err != nil {
			return fmt.Errorf("reading phoneme map: %w", err)
		}
		base, custom = m.Apply(base), m.Apply(custom)
	}

	required := dict.CollectVocabulary(p.union, p.cfg.WakeKeyphrase, p.cfg.IncludeBaseVocab, base)
	result, err := dict.Build(required, base, custom, p.cfg.G2P, p.cfg.DictOptions)
	if err != nil {
		return fmt.Errorf("building dictionary: %w", err)
	}
	p.metrics.UnknownWords = result.Unknown

	if err := writeDictionaryFile(p.cfg.DictionaryOutPath, result.Dictionary, p.cfg.DictOptions.Number); err != nil {
		return err
	}
	if p.cfg.CustomWordsOutPath != "" && len(result.Guessed) > 0 {
		if err := appendDictionaryFile(p.cfg.CustomWordsOutPath, result.Guessed, p.cfg.DictOptions.Number); err != nil {
			return fmt.Errorf("appending guessed words: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) buildLanguageModel(ctx context.Context) error {
	model, truncated := lm.BuildFromFST(p.union, p.cfg.LMOrder, p.cfg.LMMaxSentences)
	p.metrics.Truncated = truncated
	arpa := model.ToARPA()

	if p.cfg.BaseLM != nil {
		base, err := p.cfg.BaseLM.Get(ctx)
		if err != nil {
			return fmt.Errorf("loading base language model: %w", err)
		}
		arpa = lm.Interpolate(arpa, base, p.cfg.LMAlpha)
	}

	f, err := os.Create(p.cfg.LanguageModelOutPath)
	if err != nil {
		return fmt.Errorf("creating language model file: %w", err)
	}
	defer f.Close()
	return arpa.WriteTo(f)
}

// TrainIntent runs T5 (Intent-Recognizer Trainer).
func (p *Pipeline) TrainIntent(ctx context.Context) error {
	if p.perIntent == nil {
		return fmt.Errorf("train: TrainIntent called before TrainSentences produced intent FSTs")
	}
	return intenttrain.Train(ctx, p.perIntent, p.names, p.cfg.IntentTrain)
}

// scanIntentNames cheaply discovers the [IntentName] sections of a
// sentence grammar file without fully compiling it, so T1's Targets can be
// declared before the task runs (grounded on original_source/rhasspy/
// train/__init__.py's _get_intents pre-scan, which the doit task graph
// uses for the same reason).
func scanIntentNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") || strings.HasPrefix(trimmed, `\[`) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// loadGrammarDir reparses every "<dir>/<Intent>.jsgf" file written by a
// prior (possibly cross-process) run of the grammar compiler task.
func loadGrammarDir(dir string) (map[string]*jsgf.Grammar, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsgf"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*jsgf.Grammar, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".jsgf")
		g, err := jsgf.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out[name] = g
	}
	return out, nil
}

// writeStamp persists a human-readable freshness marker for the FST
// compile task: its content isn't consumed by anything, only its mtime.
func writeStamp(path string, names []string) error {
	if path == "" {
		return fmt.Errorf("train: FSTStampPath must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0o644)
}

func readDictionaryFile(path string) (dict.Dictionary, error) {
	if path == "" {
		return dict.Dictionary{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dict.Dictionary{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return dict.Read(f)
}

func readPhonemeMapFile(path string) (dict.PhonemeMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dict.LoadPhonemeMap(f)
}

func writeDictionaryFile(path string, d dict.Dictionary, number bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dictionary file: %w", err)
	}
	defer f.Close()
	return d.WriteTo(f, number)
}

func appendDictionaryFile(path string, d dict.Dictionary, number bool) error {
	existing, err := readDictionaryFile(path)
	if err != nil {
		return err
	}
	for word, prons := range d {
		existing[word] = append(existing[word], prons...)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return existing.WriteTo(f, number)
}
