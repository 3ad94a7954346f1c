package webhook

import (
	"encoding/json"
)

// Envelope is the platform's outer batching structure. Entries carry
// either messaging events or change notifications, never both.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one delivery inside an envelope.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
	Changes   []Change         `json:"changes"`
}

// Party identifies a sender or recipient.
type Party struct {
	ID        string `json:"id"`
	Community *Party `json:"community,omitempty"`
}

// Thread identifies a group conversation.
type Thread struct {
	ID string `json:"id"`
}

// MessagingEvent is one event of the messaging family. Exactly one of
// the kind fields is set; the router tests them in a fixed order.
type MessagingEvent struct {
	Sender         Party           `json:"sender"`
	Recipient      Party           `json:"recipient"`
	Thread         *Thread         `json:"thread,omitempty"`
	Message        *MessageEvent   `json:"message,omitempty"`
	Optin          json.RawMessage `json:"optin,omitempty"`
	Delivery       json.RawMessage `json:"delivery,omitempty"`
	Postback       json.RawMessage `json:"postback,omitempty"`
	Read           json.RawMessage `json:"read,omitempty"`
	AccountLinking json.RawMessage `json:"account_linking,omitempty"`
}

// ReplyTarget returns where replies go: the thread for group
// conversations, otherwise the sender. Thread ids carry the t_ wire
// prefix already; it must be preserved byte-for-byte.
func (e *MessagingEvent) ReplyTarget() string {
	if e.Thread != nil && e.Thread.ID != "" {
		return e.Thread.ID
	}
	return e.Sender.ID
}

// MessageEvent is the message payload of a messaging event.
type MessageEvent struct {
	MID         string            `json:"mid,omitempty"`
	Text        string            `json:"text,omitempty"`
	IsEcho      bool              `json:"is_echo,omitempty"`
	QuickReply  *QuickReplyEvent  `json:"quick_reply,omitempty"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
}

// QuickReplyEvent is the tapped quick-reply payload.
type QuickReplyEvent struct {
	Payload string `json:"payload"`
}

// Change is one change notification.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// ReadMessaging extracts the single expected messaging event from an
// envelope. Batching of multiple entries or events is unsupported:
// anything but exactly one entry with exactly one event is rejected
// whole, to avoid ambiguous partial processing.
func ReadMessaging(env *Envelope) (*MessagingEvent, error) {
	if len(env.Entry) != 1 {
		return nil, errMalformatted()
	}
	if len(env.Entry[0].Messaging) != 1 {
		return nil, errMalformatted()
	}
	return &env.Entry[0].Messaging[0], nil
}

// ReadChange extracts the single expected change from an envelope,
// under the same exactly-one contract as ReadMessaging.
func ReadChange(env *Envelope) (*Change, error) {
	if len(env.Entry) != 1 {
		return nil, errMalformatted()
	}
	if len(env.Entry[0].Changes) != 1 {
		return nil, errMalformatted()
	}
	return &env.Entry[0].Changes[0], nil
}
