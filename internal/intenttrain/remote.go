package intenttrain

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vocalmind/vocalmind/internal/metrics"
)

// remotePayload is the YAML document posted to the remote trainer (spec.md
// §4.12(d): "an HTTP POST of a Markdown/YAML-formatted example set"),
// grounded on original_source/rhasspy/intent_train.py's RasaIntentTrainer:
// the original writes a Rasa-style Markdown example file ("## intent:Name"
// / "- sentence") and then embeds that Markdown verbatim as the "data"
// field of a YAML training document. Data carries the same text, just
// rendered through gopkg.in/yaml.v3 instead of string-literal indenting.
type remotePayload struct {
	Language string `yaml:"language"`
	Data     string `yaml:"data"`
}

// RemoteTrainer POSTs a Markdown/YAML example set to a remote intent
// trainer (spec.md §4.12(d)).
type RemoteTrainer struct {
	URL      string
	Language string
	client   *http.Client
}

// NewRemoteTrainer builds a trainer posting to url with a pooled client,
// grounded on the same idiom as recognizer.NewRemoteStrategy.
func NewRemoteTrainer(url, language string, poolSize int) *RemoteTrainer {
	return &RemoteTrainer{
		URL:      url,
		Language: language,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        poolSize,
				MaxIdleConnsPerHost: poolSize,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Train renders sentencesByIntent as Rasa-style Markdown, wraps it in a
// YAML document, and POSTs it to the configured remote trainer.
func (t *RemoteTrainer) Train(ctx context.Context, sentencesByIntent map[string][]Sentence, names []string) error {
	payload := remotePayload{
		Language: t.Language,
		Data:     renderMarkdown(sentencesByIntent, names),
	}

	body, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("intenttrain: marshal remote payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("intenttrain: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-yml")

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("intenttrain", "http").Inc()
		return fmt.Errorf("intenttrain: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("intenttrain", "status").Inc()
		return fmt.Errorf("intenttrain: remote trainer rejected training data: status %d", resp.StatusCode)
	}
	return nil
}

// renderMarkdown writes one "## intent:Name" section per intent with a
// "- sentence" bullet per sampled sentence, entity spans rendered back as
// "[value](entity)" tags, matching the original RasaIntentTrainer's
// markdown shape exactly.
func renderMarkdown(sentencesByIntent map[string][]Sentence, names []string) string {
	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "## intent:%s\n", name)
		for _, s := range sentencesByIntent[name] {
			fmt.Fprintf(&buf, "- %s\n", renderSentence(s))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

func renderSentence(s Sentence) string {
	var spans []struct {
		start, end int
		entity     string
	}
	for _, e := range s.Entities {
		spans = append(spans, struct {
			start, end int
			entity     string
		}{e.Start, e.End, e.Entity})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var out bytes.Buffer
	i := 0
	for _, sp := range spans {
		for i < sp.start {
			writeWord(&out, s.Words[i])
			i++
		}
		fmt.Fprintf(&out, "[%s](%s) ", joinRange(s.Words, sp.start, sp.end), sp.entity)
		i = sp.end
	}
	for i < len(s.Words) {
		writeWord(&out, s.Words[i])
		i++
	}
	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

func writeWord(buf *bytes.Buffer, w string) {
	buf.WriteString(w)
	buf.WriteString(" ")
}

func joinRange(words []string, start, end int) string {
	var buf bytes.Buffer
	for i := start; i < end; i++ {
		if i > start {
			buf.WriteString(" ")
		}
		buf.WriteString(words[i])
	}
	return buf.String()
}
