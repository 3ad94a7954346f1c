package webhook

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/command"
	"github.com/jokr/taaskly/internal/metrics"
)

// handleMessagingEvent routes one messaging event by kind, in a fixed
// precedence order: the first populated kind field wins. pageToken, if
// non-empty, overrides community token resolution (page-scoped
// subscriptions carry their own token).
func (h *Handler) handleMessagingEvent(ctx context.Context, logger zerolog.Logger, event *MessagingEvent, host, pageToken string) {
	token, err := h.resolver.Resolve(ctx, pageToken, h.communityID(event))
	if err != nil {
		logger.Warn().Err(err).Str("sender", event.Sender.ID).Msg("no access token for event, dropping")
		return
	}

	target := event.ReplyTarget()

	switch {
	case event.Optin != nil:
		metrics.EventsHandled.WithLabelValues("messages", "optin").Inc()
		logger.Info().Str("sender", event.Sender.ID).Msg("authorization event")
		h.sendText(ctx, logger, token, target, "Received authorization event.")
	case event.Message != nil:
		metrics.EventsHandled.WithLabelValues("messages", "message").Inc()
		h.handleMessage(ctx, logger, event, token, host)
	case event.Delivery != nil:
		metrics.EventsHandled.WithLabelValues("messages", "delivery").Inc()
		logger.Debug().Str("sender", event.Sender.ID).Msg("delivery confirmation")
	case event.Postback != nil:
		metrics.EventsHandled.WithLabelValues("messages", "postback").Inc()
		logger.Info().RawJSON("postback", event.Postback).Msg("postback event")
	case event.Read != nil:
		metrics.EventsHandled.WithLabelValues("messages", "read").Inc()
		logger.Debug().Str("sender", event.Sender.ID).Msg("read receipt")
	case event.AccountLinking != nil:
		metrics.EventsHandled.WithLabelValues("messages", "account_linking").Inc()
		logger.Info().RawJSON("account_linking", event.AccountLinking).Msg("account linking event")
	default:
		metrics.EventsHandled.WithLabelValues("messages", "unknown").Inc()
		logger.Warn().Str("sender", event.Sender.ID).Msg("messaging event with no known kind")
	}
}

// handleMessage walks the message states in order: echoes are dropped,
// quick replies and attachments get acknowledgements, plain text goes
// through the command registry. A message that is none of these is
// ignored without a reply.
func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, event *MessagingEvent, token, host string) {
	m := event.Message

	if m.IsEcho {
		logger.Debug().Str("mid", m.MID).Msg("echo of own message, ignoring")
		return
	}

	// At-least-once delivery: the platform redelivers on slow acks, so
	// duplicates are dropped before any side effect runs.
	if h.seen != nil && h.seen.SeenDelivery(ctx, m.MID) {
		metrics.DuplicateDeliveries.Inc()
		logger.Info().Str("mid", m.MID).Msg("duplicate delivery, skipping")
		return
	}

	target := event.ReplyTarget()

	switch {
	case m.QuickReply != nil:
		h.sendText(ctx, logger, token, target, "Received quick reply: "+m.QuickReply.Payload)
	case len(m.Attachments) > 0:
		serialized, err := json.Marshal(m.Attachments)
		if err != nil {
			logger.Error().Err(err).Str("mid", m.MID).Msg("failed to serialize attachments")
			return
		}
		h.sendText(ctx, logger, token, target, "Received attachments: "+string(serialized))
	case m.Text != "":
		env := command.Env{
			Target:   target,
			SenderID: event.Sender.ID,
			Token:    token,
			Host:     host,
		}
		if err := h.commands.Dispatch(ctx, env, m.Text); err != nil {
			logger.Warn().Err(err).Str("mid", m.MID).Str("text", m.Text).Msg("command dispatch failed")
		}
	default:
		logger.Debug().Str("mid", m.MID).Msg("message with no actionable content")
	}
}

// communityID extracts the community scope of an event. Workplace puts
// it on the sender; bare page events fall back to the recipient id.
func (h *Handler) communityID(event *MessagingEvent) int64 {
	if event.Sender.Community != nil {
		if id, err := strconv.ParseInt(event.Sender.Community.ID, 10, 64); err == nil {
			return id
		}
	}
	if id, err := strconv.ParseInt(event.Recipient.ID, 10, 64); err == nil {
		return id
	}
	return 0
}

func (h *Handler) sendText(ctx context.Context, logger zerolog.Logger, token, target, text string) {
	if _, err := h.graph.PostText(ctx, token, target, text); err != nil {
		logger.Warn().Err(err).Str("target", target).Msg("failed to send reply")
	}
}
