// Command train runs the offline training pipeline (spec.md §4.9-§4.12,
// T1-T5) once against the active profile's sentences/grammar/dictionary
// files and exits, writing the compiled grammar, dictionary, language
// model and recognizer-strategy artifact under the profile's user
// directory. It is meant to be invoked by an operator (or a cron/CI job)
// ahead of starting cmd/assistant, not by the assistant itself.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/vocalmind/vocalmind/internal/dict"
	"github.com/vocalmind/vocalmind/internal/env"
	"github.com/vocalmind/vocalmind/internal/fstcompile"
	"github.com/vocalmind/vocalmind/internal/intenttrain"
	"github.com/vocalmind/vocalmind/internal/lm"
	"github.com/vocalmind/vocalmind/internal/profile"
	"github.com/vocalmind/vocalmind/internal/telemetry"
	"github.com/vocalmind/vocalmind/internal/train"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	prof, err := profile.Load(nil)
	if err != nil {
		slog.Error("profile load failed", "error", err)
		os.Exit(1)
	}
	slog.Info("profile loaded", "name", prof.Name())

	tel := openTelemetry()
	if tel != nil {
		defer tel.Close()
	}

	cfg, closeArtifacts, err := buildConfig(prof)
	if err != nil {
		slog.Error("building training config failed", "error", err)
		os.Exit(1)
	}
	defer closeArtifacts()

	pipeline := train.NewPipeline(cfg)
	ctx := context.Background()

	for _, stage := range []struct {
		name string
		run  func(context.Context) error
	}{
		{"sentences", pipeline.TrainSentences},
		{"speech", pipeline.TrainSpeech},
		{"intent", pipeline.TrainIntent},
	} {
		runID := ""
		if tel != nil {
			runID = tel.StartTrainingRun(stage.name)
		}
		started := time.Now()
		runErr := stage.run(ctx)
		elapsedMs := float64(time.Since(started).Milliseconds())
		status, errMsg := "ok", ""
		if runErr != nil {
			status, errMsg = "error", runErr.Error()
		}
		if tel != nil {
			tel.EndTrainingRun(runID, elapsedMs, status, errMsg)
		}
		if runErr != nil {
			slog.Error("training stage failed", "stage", stage.name, "error", runErr)
			os.Exit(1)
		}
		slog.Info("training stage complete", "stage", stage.name, "elapsed_ms", elapsedMs)
	}

	metrics := pipeline.Metrics()
	if len(metrics.UnknownWords) > 0 {
		slog.Warn("training left unresolved words", "count", len(metrics.UnknownWords), "words", metrics.UnknownWords)
	}
	if metrics.Truncated {
		slog.Warn("intent language sampling was truncated by LMMaxSentences")
	}
	slog.Info("training complete")
}

func openTelemetry() *telemetry.Recorder {
	dsn := env.Str("VOCALMIND_TELEMETRY_DSN", "")
	if dsn == "" {
		return nil
	}
	store, err := telemetry.Open(dsn)
	if err != nil {
		slog.Error("telemetry store open failed", "error", err)
		return nil
	}
	return telemetry.NewRecorder(store)
}

// buildConfig resolves every training input/output path against the
// profile's layered search path and read/write conventions (internal/
// profile.ReadPath/WritePath), matching spec.md §6's "training writes
// exclusively into the active user profile directory" invariant.
func buildConfig(prof *profile.Profile) (cfg train.Config, closeArtifacts func(), err error) {
	closeArtifacts = func() {}

	sentencesPath, ok := prof.ReadPath("sentences.ini")
	if !ok {
		return train.Config{}, closeArtifacts, fmt.Errorf("train: no sentences.ini found for profile %q", prof.Name())
	}

	var slots fstcompile.SlotLoader
	if slotsDir, ok := prof.ReadPath("slots"); ok {
		slots = fstcompile.DirSlotLoader{Dir: slotsDir}
	}

	var g2p dict.G2PModel
	if g2pPath := prof.GetString("training.g2p.path", ""); g2pPath != "" {
		g2p = dict.NewCommandG2P(g2pPath, prof.GetStringSlice("training.g2p.args", nil))
	}

	var baseLM *lm.BaseLMCache
	if baseLMPath, ok := prof.ReadPath("base_language_model.txt"); ok {
		baseLM = &lm.BaseLMCache{Path: baseLMPath}
	}

	policy := dict.MergeFirst
	if prof.GetString("training.dictionary.merge_policy", "first") == "all" {
		policy = dict.MergeAll
	}

	intentCfg, closeIntentArtifacts, err := buildIntentTrainConfig(prof)
	if err != nil {
		return train.Config{}, closeArtifacts, err
	}
	closeArtifacts = closeIntentArtifacts

	return train.Config{
		SentencesPath: sentencesPath,
		GrammarDir:    prof.WritePath("grammars"),
		FSTStampPath:  prof.WritePath("grammars/.fst-stamp"),
		Slots:         slots,
		WordCase:      wordCaseFromProfile(prof),

		WakeKeyphrase:        prof.GetStringSlice("wake.keyphrase", []string{"hey", "rhasspy"}),
		BaseDictionaryPath:   firstReadPath(prof, "base_dictionary.txt"),
		CustomDictionaryPath: firstReadPath(prof, "custom_words.txt"),
		PhonemeMapPath:       firstReadPath(prof, "phoneme_map.txt"),
		CustomWordsOutPath:   prof.WritePath("custom_words.txt"),
		DictionaryOutPath:    prof.WritePath("dictionary.txt"),
		G2P:                  g2p,
		DictOptions: dict.BuildOptions{
			Policy:        policy,
			Number:        prof.GetBool("training.dictionary.number_variants", false),
			FailOnUnknown: prof.GetBool("training.dictionary.fail_on_unknown", false),
		},
		IncludeBaseVocab: prof.GetBool("training.dictionary.include_base_vocab", false),

		LMOrder:              prof.GetInt("training.language_model.order", 3),
		LMMaxSentences:       prof.GetInt("training.language_model.max_sentences", 10_000),
		BaseLM:               baseLM,
		LMAlpha:              prof.GetFloat("training.language_model.base_alpha", 0.5),
		LanguageModelOutPath: prof.WritePath("language_model.txt"),

		IntentTrain: intentCfg,

		Runner: &train.Runner{},
	}, nil
}

func firstReadPath(prof *profile.Profile, rel string) string {
	path, ok := prof.ReadPath(rel)
	if !ok {
		return ""
	}
	return path
}

func wordCaseFromProfile(prof *profile.Profile) fstcompile.WordCase {
	switch prof.GetString("training.word_case", "lower") {
	case "upper":
		return fstcompile.CaseUpper
	case "preserve":
		return fstcompile.CasePreserve
	default:
		return fstcompile.CaseLower
	}
}

// buildIntentTrainConfig resolves T5's output per the profile's configured
// recognizer strategy (spec.md §4.12); VariantFST needs no output file. The
// returned closer must run after TrainIntent to flush and close whatever
// artifact file was opened.
func buildIntentTrainConfig(prof *profile.Profile) (intenttrain.Config, func(), error) {
	noop := func() {}

	sampleMode := intenttrain.Exhaustive
	if prof.GetString("training.intent.sample_mode", "exhaustive") == "random" {
		sampleMode = intenttrain.Random
	}
	sample := intenttrain.Options{
		Mode:         sampleMode,
		MaxSentences: prof.GetInt("training.intent.max_sentences", 1000),
		Next:         rand.Intn,
	}

	switch prof.GetString("recognizer.system", "fst") {
	case "fuzzy":
		f, err := os.Create(prof.WritePath("intent_examples.json"))
		if err != nil {
			return intenttrain.Config{}, noop, fmt.Errorf("train: creating intent examples file: %w", err)
		}
		return intenttrain.Config{Variant: intenttrain.VariantFuzzy, Sample: sample, ExamplesOut: f}, func() { f.Close() }, nil
	case "keyword":
		f, err := os.Create(prof.WritePath("intent_rules.json"))
		if err != nil {
			return intenttrain.Config{}, noop, fmt.Errorf("train: creating intent rules file: %w", err)
		}
		return intenttrain.Config{Variant: intenttrain.VariantKeyword, Sample: sample, RulesOut: f}, func() { f.Close() }, nil
	case "remote":
		url := prof.GetString("recognizer.remote.train_url", "")
		remote := intenttrain.NewRemoteTrainer(url, prof.Name(), prof.GetInt("recognizer.remote.pool_size", 4))
		return intenttrain.Config{Variant: intenttrain.VariantRemote, Sample: sample, Remote: remote}, noop, nil
	default:
		return intenttrain.Config{Variant: intenttrain.VariantFST, Sample: sample}, noop, nil
	}
}
