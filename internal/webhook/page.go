package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/metrics"
)

// PageCallback ingests page-topic webhooks. Unlike the messaging
// topic, page envelopes legitimately batch multiple entries (one per
// subscribed page), so every entry is walked. Messaging events go
// through the same pipeline as direct messages; mention changes are
// unwrapped into the equivalent messaging event first.
func (h *Handler) PageCallback(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.record(r, body)

	if err := h.gate(r.Context()); err != nil {
		h.fail(w, err)
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, errMalformatted())
		return
	}
	if env.Object != "page" {
		h.logger.Warn().Str("object", env.Object).Msg("page callback with wrong topic")
		h.fail(w, badRequest("Invalid topic."))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))

	host := r.Host
	logger := h.requestLogger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for i := range env.Entry {
			h.handlePageEntry(ctx, logger, &env.Entry[i], host)
		}
	}()
}

func (h *Handler) handlePageEntry(ctx context.Context, logger zerolog.Logger, entry *Entry, host string) {
	pageToken := h.pageToken(ctx, entry.ID)

	for i := range entry.Messaging {
		h.handleMessagingEvent(ctx, logger, &entry.Messaging[i], host, pageToken)
	}
	for i := range entry.Changes {
		change := &entry.Changes[i]
		if change.Field != "mention" {
			metrics.EventsHandled.WithLabelValues("page", "unknown").Inc()
			logger.Warn().Str("field", change.Field).Msg("page change with no handler")
			continue
		}
		metrics.EventsHandled.WithLabelValues("page", "mention").Inc()
		var event MessagingEvent
		if err := json.Unmarshal(change.Value, &event); err != nil {
			logger.Warn().Err(err).Msg("malformed mention change")
			continue
		}
		h.handleMessagingEvent(ctx, logger, &event, host, pageToken)
	}
}

// pageToken resolves the page-scoped access token, when the page was
// installed individually. Empty means community resolution applies.
func (h *Handler) pageToken(ctx context.Context, entryID string) string {
	if h.store == nil {
		return ""
	}
	id, err := strconv.ParseInt(entryID, 10, 64)
	if err != nil {
		return ""
	}
	page, err := h.store.GetPage(ctx, id)
	if err != nil || page == nil {
		return ""
	}
	return page.AccessToken
}
