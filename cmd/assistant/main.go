// Command assistant runs the runtime pipeline (spec.md §4, L1-L7): wires
// the microphone source, wake detector, VAD-bracketed command listener,
// decoder, recognizer, intent handler and speaker behind the dialogue
// coordinator, serves Prometheus metrics, and waits for SIGINT/SIGTERM.
//
// CLI scaffolding proper (flag parsing, multiple subcommands) is out of
// scope per spec.md §1; configuration is read entirely from the active
// profile (internal/profile) and a small set of environment variables,
// matching the teacher's env.Str/gateway.json layering.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalmind/vocalmind/internal/decoder"
	"github.com/vocalmind/vocalmind/internal/dialogue"
	"github.com/vocalmind/vocalmind/internal/dict"
	"github.com/vocalmind/vocalmind/internal/env"
	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/fstcompile"
	"github.com/vocalmind/vocalmind/internal/handler"
	"github.com/vocalmind/vocalmind/internal/homeauto"
	"github.com/vocalmind/vocalmind/internal/mic"
	"github.com/vocalmind/vocalmind/internal/profile"
	"github.com/vocalmind/vocalmind/internal/recognizer"
	"github.com/vocalmind/vocalmind/internal/speaker"
	"github.com/vocalmind/vocalmind/internal/telemetry"
	"github.com/vocalmind/vocalmind/internal/train"
	"github.com/vocalmind/vocalmind/internal/vad"
	"github.com/vocalmind/vocalmind/internal/wake"
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

	coord := buildCoordinator(prof, tel)
	defer coord.Close()

	if problems := coord.Load(context.Background()); len(problems) > 0 {
		for name, perr := range problems {
			slog.Warn("component problem at load", "component", name, "error", perr)
		}
	}

	if prof.GetBool("dialogue.listen_on_start", false) {
		if err := coord.ListenForWake(); err != nil {
			slog.Error("listen_for_wake failed", "error", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := ":" + env.Str("VOCALMIND_PORT", "8091")
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, coord)

	slog.Info("assistant starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("assistant stopped")
}

func awaitShutdown(srv *http.Server, coord *dialogue.Coordinator) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.StopListening()
	srv.Shutdown(ctx)
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
	slog.Info("telemetry enabled", "dsn_set", true)
	return telemetry.NewRecorder(store)
}

func buildCoordinator(prof *profile.Profile, tel *telemetry.Recorder) *dialogue.Coordinator {
	wakeKeyphrase := prof.GetStringSlice("wake.keyphrase", []string{"hey", "rhasspy"})

	vadCfg := vad.DefaultConfig()
	vadCfg.SampleRate = prof.GetInt("vad.sample_rate", vadCfg.SampleRate)
	vadCfg.Aggressiveness = prof.GetInt("vad.aggressiveness", vadCfg.Aggressiveness)
	vadCfg.MinCommandSec = prof.GetFloat("vad.min_command_sec", vadCfg.MinCommandSec)
	vadCfg.SilenceTrailingSec = prof.GetFloat("vad.silence_trailing_sec", vadCfg.SilenceTrailingSec)
	vadCfg.MaxCommandSec = prof.GetFloat("vad.max_command_sec", vadCfg.MaxCommandSec)
	vadCfg.Derive()

	// One shared microphone source, fanned out to both the wake detector
	// (while asleep) and the command listener the coordinator drives
	// internally (while awake) — spec.md §4.1: "a single capture device,
	// fanned out to any number of subscribers".
	micSource := mic.New(&mic.DummyCapturer{})

	wakeDet := buildWake(prof, wakeKeyphrase, micSource)
	dec := buildDecoder(prof)
	rec := buildRecognizer(prof)
	hdl := buildHandler(prof)
	spk := buildSpeaker(prof)
	dictionary := loadRuntimeDictionary(prof)

	cfg := dialogue.Config{
		ListenOnStart: prof.GetBool("dialogue.listen_on_start", false),
		LoadTimeout:   time.Duration(prof.GetInt("dialogue.load_timeout_ms", 10_000)) * time.Millisecond,
		VAD:           vadCfg,
	}

	return dialogue.New(cfg, micSource, wakeDet, dec, rec, hdl, spk, dictionary, vad.NewEnergyClassifier(vadCfg.Aggressiveness), tel)
}

func buildWake(prof *profile.Profile, keyphrase []string, micSource *mic.Source) *wake.Wake {
	name := fmt.Sprintf("%v", keyphrase)
	frameBytes := prof.GetInt("wake.frame_bytes", 960)
	classifier := vad.NewEnergyClassifier(prof.GetInt("vad.aggressiveness", 1))

	var detector wake.Detector
	switch prof.GetString("wake.system", "energy") {
	case "command":
		path := prof.GetString("wake.command.path", "")
		args := prof.GetStringSlice("wake.command.args", nil)
		detector = wake.NewCommandDetector(path, args, frameBytes)
	default:
		required := prof.GetInt("wake.energy.required_frames", 10)
		detector = wake.NewEnergyKeywordSpotter(name, classifier, frameBytes, required)
	}

	return wake.New(micSource, detector, wake.Config{
		Preload:         prof.GetBool("wake.preload", false),
		EmitNotDetected: prof.GetBool("wake.emit_not_detected", false),
	})
}

func buildDecoder(prof *profile.Profile) *decoder.Decoder {
	var backend decoder.Backend
	switch prof.GetString("decoder.system", "command") {
	case "http":
		backend = decoder.NewHTTPBackend(prof.GetString("decoder.http.url", ""), prof.GetInt("decoder.http.pool_size", 4))
	default:
		path := prof.GetString("decoder.command.path", "")
		args := prof.GetStringSlice("decoder.command.args", nil)
		backend = decoder.NewCommandBackend(path, args)
	}
	return decoder.New(context.Background(), backend, decoder.Config{Preload: prof.GetBool("decoder.preload", false)})
}

// buildRecognizer loads whatever training artifacts are on disk for the
// profile's configured strategy (spec.md §4.5/§4.12); an assistant started
// before training has run falls back to an always-empty FST strategy.
func buildRecognizer(prof *profile.Profile) *recognizer.Recognizer {
	minConfidence := prof.GetFloat("recognizer.min_confidence", 0.0)

	switch prof.GetString("recognizer.system", "fst") {
	case "fuzzy":
		examples := loadExamples(prof)
		return recognizer.New(recognizer.NewFuzzyStrategy(examples, minConfidence))
	case "keyword":
		rules := loadRules(prof)
		return recognizer.New(recognizer.NewKeywordStrategy(rules, minConfidence))
	case "remote":
		url := prof.GetString("recognizer.remote.url", "")
		return recognizer.New(recognizer.NewRemoteStrategy(url, prof.GetInt("recognizer.remote.pool_size", 4)))
	case "command":
		path := prof.GetString("recognizer.command.path", "")
		args := prof.GetStringSlice("recognizer.command.args", nil)
		return recognizer.New(recognizer.NewCommandStrategy(path, args))
	default:
		machine, aliases := loadUnionFST(prof)
		strategy := recognizer.NewFSTStrategy(machine, prof.GetBool("recognizer.fst.drop_oov", true))
		strategy.Aliases = aliases
		strategy.MinConfidence = minConfidence
		return recognizer.New(strategy)
	}
}

func loadUnionFST(prof *profile.Profile) (*fst.FST, fstcompile.AliasMap) {
	grammarDir, ok := prof.ReadPath("grammars")
	if !ok {
		slog.Warn("no grammars directory found for profile, starting with an empty intent FST", "profile", prof.Name())
		return fst.New(), nil
	}
	var slots fstcompile.SlotLoader
	if slotsDir, ok := prof.ReadPath("slots"); ok {
		slots = fstcompile.DirSlotLoader{Dir: slotsDir}
	}
	machine, aliases, err := train.CompileUnionFST(grammarDir, slots, fstcompile.CaseLower)
	if err != nil {
		slog.Error("compiling intent FST from grammar dir failed, starting with an empty FST", "error", err)
		return fst.New(), nil
	}
	return machine, aliases
}

func loadExamples(prof *profile.Profile) []recognizer.Example {
	path, ok := prof.ReadPath("intent_examples.json")
	if !ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("reading intent examples failed", "error", err)
		return nil
	}
	var examples []recognizer.Example
	if err := json.Unmarshal(data, &examples); err != nil {
		slog.Error("parsing intent examples failed", "error", err)
		return nil
	}
	return examples
}

func loadRules(prof *profile.Profile) []recognizer.IntentRule {
	path, ok := prof.ReadPath("intent_rules.json")
	if !ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("reading intent rules failed", "error", err)
		return nil
	}
	var rules []recognizer.IntentRule
	if err := json.Unmarshal(data, &rules); err != nil {
		slog.Error("parsing intent rules failed", "error", err)
		return nil
	}
	return rules
}

func buildHandler(prof *profile.Profile) *handler.Handler {
	baseURL := prof.GetString("handler.home_automation.url", "")
	auth := homeauto.ResolveAuth(
		env.Str("VOCALMIND_HOMEAUTO_BEARER_TOKEN", ""),
		env.Str("VOCALMIND_HOMEAUTO_ACCESS_TOKEN", ""),
		env.Str("VOCALMIND_HOMEAUTO_API_PASSWORD", ""),
	)
	poster := homeauto.New(baseURL, auth, prof.GetInt("handler.home_automation.pool_size", 4))
	return handler.New(poster, handler.Config{
		EventTypeTemplate: prof.GetString("handler.event_type_template", ""),
	})
}

func buildSpeaker(prof *profile.Profile) dialogue.Speaker {
	if prof.GetString("speaker.system", "command") != "command" {
		return speaker.NullSpeaker{}
	}
	path := prof.GetString("speaker.command.path", "")
	if path == "" {
		return speaker.NullSpeaker{}
	}
	args := prof.GetStringSlice("speaker.command.args", nil)
	chime := prof.GetStringSlice("speaker.chime.args", nil)
	return speaker.NewCommandSpeaker(path, args, chime)
}

// loadRuntimeDictionary loads the trained pronunciation dictionary so the
// coordinator's out-of-band Pronunciations request (spec.md §4.7) can
// answer against it; a missing dictionary (no training run yet) disables
// the lookup rather than failing startup.
func loadRuntimeDictionary(prof *profile.Profile) dialogue.PronunciationLookup {
	path, ok := prof.ReadPath("dictionary.txt")
	if !ok {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Error("opening runtime dictionary failed", "error", err)
		return nil
	}
	defer f.Close()
	d, err := dict.Read(f)
	if err != nil {
		slog.Error("parsing runtime dictionary failed", "error", err)
		return nil
	}
	return dictionaryLookup(d)
}

// dictionaryLookup adapts dict.Dictionary's single-word Lookup to
// dialogue.PronunciationLookup's batch shape.
type dictionaryLookup dict.Dictionary

func (d dictionaryLookup) Lookup(words []string) map[string][]string {
	out := make(map[string][]string, len(words))
	for _, w := range words {
		if prons, ok := dict.Dictionary(d).Lookup(w); ok {
			out[w] = prons
		}
	}
	return out
}
