package train

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vocalmind/vocalmind/internal/dict"
)

type fakeG2P struct{ pron map[string]string }

func (f *fakeG2P) Guess(words []string) (map[string]string, error) { return f.pron, nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestConfig(t *testing.T) (Config, string) {
	dir := t.TempDir()
	sentences := "[GetTime]\nwhat time is it\n\n" +
		"[ChangeLightState]\nturn (on | off) the [kitchen](location) light\n"
	sentencesPath := filepath.Join(dir, "sentences.ini")
	writeFile(t, sentencesPath, sentences)

	baseDictPath := filepath.Join(dir, "base.dict")
	writeFile(t, baseDictPath, "what W AH T\ntime T AY M\nis IH Z\nit IH T\nturn T ER N\non AA N\noff AO F\nthe DH AH\nlight L AY T\n")

	return Config{
		SentencesPath: sentencesPath,
		GrammarDir:    filepath.Join(dir, "grammars"),
		FSTStampPath:  filepath.Join(dir, "intent.fst.stamp"),

		BaseDictionaryPath: baseDictPath,
		CustomWordsOutPath: filepath.Join(dir, "custom_words.txt"),
		DictionaryOutPath:  filepath.Join(dir, "dictionary.txt"),
		G2P:                &fakeG2P{pron: map[string]string{"kitchen": "K IH CH AH N"}},

		LMOrder:              2,
		LMMaxSentences:       100,
		LanguageModelOutPath: filepath.Join(dir, "language_model.arpa"),

		Runner: &Runner{},
	}, dir
}

func TestPipelineTrainSentencesCompilesUnionFSTAndAliases(t *testing.T) {
	cfg, _ := newTestConfig(t)
	p := NewPipeline(cfg)

	if err := p.TrainSentences(context.Background()); err != nil {
		t.Fatalf("TrainSentences: %v", err)
	}
	if p.UnionFST() == nil {
		t.Fatal("expected a compiled union FST")
	}
	if len(p.names) != 2 || p.names[0] != "ChangeLightState" || p.names[1] != "GetTime" {
		t.Fatalf("names = %v, want sorted [ChangeLightState GetTime]", p.names)
	}
	if _, err := os.Stat(cfg.FSTStampPath); err != nil {
		t.Fatalf("expected stamp file to exist: %v", err)
	}
	for _, name := range p.names {
		if _, err := os.Stat(filepath.Join(cfg.GrammarDir, name+".jsgf")); err != nil {
			t.Fatalf("expected grammar file for %s: %v", name, err)
		}
	}
}

func TestPipelineTrainSentencesIsIdempotentOnRerun(t *testing.T) {
	cfg, _ := newTestConfig(t)
	p := NewPipeline(cfg)
	if err := p.TrainSentences(context.Background()); err != nil {
		t.Fatalf("first TrainSentences: %v", err)
	}

	// A fresh Pipeline over the same already-fresh on-disk artifacts must
	// still end up with usable in-memory state, even though both tasks
	// are skipped as fresh.
	p2 := NewPipeline(cfg)
	if err := p2.TrainSentences(context.Background()); err != nil {
		t.Fatalf("second TrainSentences: %v", err)
	}
	if p2.UnionFST() == nil {
		t.Fatal("expected the reloaded pipeline to still have a union FST")
	}
}

func TestPipelineTrainSpeechWritesDictionaryAndLanguageModel(t *testing.T) {
	cfg, _ := newTestConfig(t)
	p := NewPipeline(cfg)
	if err := p.TrainSentences(context.Background()); err != nil {
		t.Fatalf("TrainSentences: %v", err)
	}
	if err := p.TrainSpeech(context.Background()); err != nil {
		t.Fatalf("TrainSpeech: %v", err)
	}

	data, err := os.ReadFile(cfg.DictionaryOutPath)
	if err != nil {
		t.Fatalf("reading dictionary output: %v", err)
	}
	dictionary, err := dict.Read(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("dict.Read: %v", err)
	}
	if _, ok := dictionary["kitchen"]; !ok {
		t.Fatalf("expected G2P-guessed word 'kitchen' in dictionary output, got %v", dictionary)
	}
	if _, ok := dictionary["time"]; !ok {
		t.Fatalf("expected base-dictionary word 'time' in dictionary output, got %v", dictionary)
	}

	guessed, err := os.ReadFile(cfg.CustomWordsOutPath)
	if err != nil {
		t.Fatalf("reading custom words output: %v", err)
	}
	if !strings.Contains(string(guessed), "kitchen") {
		t.Fatalf("expected guessed word file to contain 'kitchen', got %q", guessed)
	}

	arpa, err := os.ReadFile(cfg.LanguageModelOutPath)
	if err != nil {
		t.Fatalf("reading language model output: %v", err)
	}
	if !strings.Contains(string(arpa), "\\data\\") {
		t.Fatalf("expected ARPA header in language model output, got %q", arpa)
	}
}

func TestPipelineTrainSpeechFailsBeforeTrainSentences(t *testing.T) {
	cfg, _ := newTestConfig(t)
	p := NewPipeline(cfg)
	if err := p.TrainSpeech(context.Background()); err == nil {
		t.Fatal("expected an error calling TrainSpeech before TrainSentences")
	}
}

func TestPipelineTrainIntentWritesFuzzyExamples(t *testing.T) {
	cfg, dir := newTestConfig(t)
	examplesPath := filepath.Join(dir, "examples.json")
	examplesFile, err := os.Create(examplesPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer examplesFile.Close()

	cfg.IntentTrain.Variant = 1 // VariantFuzzy
	cfg.IntentTrain.ExamplesOut = examplesFile

	p := NewPipeline(cfg)
	if err := p.TrainSentences(context.Background()); err != nil {
		t.Fatalf("TrainSentences: %v", err)
	}
	if err := p.TrainIntent(context.Background()); err != nil {
		t.Fatalf("TrainIntent: %v", err)
	}

	data, err := os.ReadFile(examplesPath)
	if err != nil {
		t.Fatalf("reading examples output: %v", err)
	}
	var examples []map[string]any
	if err := json.Unmarshal(data, &examples); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if len(examples) == 0 {
		t.Fatal("expected at least one sampled example")
	}
}

func TestPipelineTrainIntentFailsBeforeTrainSentences(t *testing.T) {
	cfg, _ := newTestConfig(t)
	p := NewPipeline(cfg)
	if err := p.TrainIntent(context.Background()); err == nil {
		t.Fatal("expected an error calling TrainIntent before TrainSentences")
	}
}
