// Package handler implements the Intent Handler (spec.md §4.6, L6):
// forwards a recognized intent to the home-automation collaborator, with
// an error annotated onto the intent on failure rather than retried.
package handler

import (
	"context"
	"strings"

	"github.com/vocalmind/vocalmind/internal/recognizer"
)

// EventPoster is the home-automation transport seam (internal/homeauto.Client
// satisfies it); kept as an interface here so tests don't need a live HTTP
// server.
type EventPoster interface {
	PostEvent(ctx context.Context, eventType string, entityData map[string]string) error
}

// Config controls event-type naming. Template may contain the literal
// substring "{intent}", replaced with the intent name; if absent, the
// intent name is appended after Template as-is, matching a bare prefix
// configuration.
type Config struct {
	EventTypeTemplate string // e.g. "rhasspy_{intent}" or "" for the bare intent name
}

// Handler is the L6 Intent Handler. Not an actor: it holds no state
// between calls and the dialogue coordinator serializes its own calls to
// it, same reasoning as internal/decoder and internal/recognizer.
type Handler struct {
	poster EventPoster
	cfg    Config
}

// New creates a handler posting through poster.
func New(poster EventPoster, cfg Config) *Handler {
	return &Handler{poster: poster, cfg: cfg}
}

// Handle forwards result's intent as a home-automation event. On network
// failure, it sets result.Intent.Error and returns the result unchanged
// otherwise — it never retries, per spec.md §4.6.
func (h *Handler) Handle(ctx context.Context, result recognizer.Result) recognizer.Result {
	if result.Empty() {
		return result
	}

	eventType := h.eventType(result.Intent.Name)
	data := entityData(result.Entities)

	if err := h.poster.PostEvent(ctx, eventType, data); err != nil {
		result.Intent.Error = err.Error()
	}
	return result
}

func (h *Handler) eventType(intent string) string {
	if h.cfg.EventTypeTemplate == "" {
		return intent
	}
	if strings.Contains(h.cfg.EventTypeTemplate, "{intent}") {
		return strings.ReplaceAll(h.cfg.EventTypeTemplate, "{intent}", intent)
	}
	return h.cfg.EventTypeTemplate + intent
}

// entityData flattens a recognized intent's entities into the event-data
// map the home-automation collaborator expects: entity name to string
// value, last write wins for repeated entity names.
func entityData(entities []recognizer.Entity) map[string]string {
	data := make(map[string]string, len(entities))
	for _, e := range entities {
		data[e.Entity] = e.Value
	}
	return data
}
