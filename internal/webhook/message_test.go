package webhook

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// memorySeen is an in-memory SeenStore: first sighting of a mid
// returns false, every later one true.
type memorySeen struct {
	mids map[string]bool
}

func (m *memorySeen) SeenDelivery(ctx context.Context, mid string) bool {
	if m.mids[mid] {
		return true
	}
	m.mids[mid] = true
	return false
}

func (m *memorySeen) Ping(ctx context.Context) error { return nil }

func TestDuplicateDeliverySkipped(t *testing.T) {
	h, fake := newTestHandler(t)
	h.seen = &memorySeen{mids: make(map[string]bool)}

	event := &MessagingEvent{
		Sender: Party{ID: "42"},
		Message: &MessageEvent{
			MID:        "m1",
			QuickReply: &QuickReplyEvent{Payload: "X"},
		},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 1 {
		t.Fatalf("redelivered mid must not ack twice, got %d sends", len(fake.texts))
	}

	// A fresh mid goes through.
	event.Message.MID = "m2"
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")
	if len(fake.texts) != 2 {
		t.Fatalf("new mid should be handled, got %d sends", len(fake.texts))
	}
}

func TestEchoMessageSendsNothing(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender:  Party{ID: "42"},
		Message: &MessageEvent{MID: "m1", Text: "hello", IsEcho: true},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 0 || len(fake.messages) != 0 {
		t.Fatalf("echo must not trigger sends, got %d texts, %d messages", len(fake.texts), len(fake.messages))
	}
}

func TestQuickReplyAcknowledged(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender: Party{ID: "42"},
		Message: &MessageEvent{
			MID:        "m1",
			Text:       "Yes",
			QuickReply: &QuickReplyEvent{Payload: "PICK_ACTION"},
		},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 1 {
		t.Fatalf("expected one ack, got %d", len(fake.texts))
	}
	if !strings.Contains(fake.texts[0], "PICK_ACTION") {
		t.Fatalf("ack should include the payload: %q", fake.texts[0])
	}
	if fake.targets[0] != "42" {
		t.Fatalf("ack should go to the sender, got %q", fake.targets[0])
	}
}

func TestAttachmentsAcknowledged(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender: Party{ID: "42"},
		Message: &MessageEvent{
			MID:         "m1",
			Attachments: []json.RawMessage{json.RawMessage(`{"type":"image"}`)},
		},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 1 {
		t.Fatalf("expected one ack, got %d", len(fake.texts))
	}
	if !strings.HasPrefix(fake.texts[0], "Received attachments: ") {
		t.Fatalf("unexpected ack: %q", fake.texts[0])
	}
	if !strings.Contains(fake.texts[0], "image") {
		t.Fatalf("ack should carry the serialized attachment: %q", fake.texts[0])
	}
}

func TestTextGoesThroughCommands(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender:  Party{ID: "42"},
		Message: &MessageEvent{MID: "m1", Text: "Hi!!"},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.messages) != 1 {
		t.Fatalf("expected one command reply, got %d", len(fake.messages))
	}
	if !strings.Contains(fake.messages[0].Message.Text, "Hi there!") {
		t.Fatalf("expected greeting, got %q", fake.messages[0].Message.Text)
	}
}

func TestGroupMessageRepliesToThread(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender: Party{ID: "42"},
		Thread: &Thread{ID: "t_4711"},
		Message: &MessageEvent{
			MID:        "m1",
			QuickReply: &QuickReplyEvent{Payload: "X"},
		},
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.targets) != 1 || fake.targets[0] != "t_4711" {
		t.Fatalf("expected reply to thread key, got %v", fake.targets)
	}
}

func TestOptinAcknowledged(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender: Party{ID: "42"},
		Optin:  json.RawMessage(`{"ref":"PASS"}`),
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 1 || !strings.Contains(fake.texts[0], "authorization") {
		t.Fatalf("expected authorization ack, got %v", fake.texts)
	}
}

func TestDeliveryEventSendsNothing(t *testing.T) {
	h, fake := newTestHandler(t)

	event := &MessagingEvent{
		Sender:   Party{ID: "42"},
		Delivery: json.RawMessage(`{"mids":["m1"]}`),
	}
	h.handleMessagingEvent(context.Background(), zerolog.Nop(), event, "taaskly.example", "")

	if len(fake.texts) != 0 || len(fake.messages) != 0 {
		t.Fatal("delivery confirmations must not trigger replies")
	}
}
