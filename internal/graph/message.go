package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// threadPrefix marks thread-scoped recipients on the wire. The "t_"
// prefix is the platform's convention, not internal state, and must
// reach the wire unchanged.
const threadPrefix = "t_"

// Recipient addresses an outbound message: a user id, a thread key,
// or a list of user ids (which opens a new group thread).
type Recipient struct {
	ID        string   `json:"id,omitempty"`
	ThreadKey string   `json:"thread_key,omitempty"`
	IDs       []string `json:"ids,omitempty"`
}

// RecipientFor builds a Recipient from a target string, routing
// thread ids by their wire prefix.
func RecipientFor(target string) Recipient {
	if strings.HasPrefix(target, threadPrefix) {
		return Recipient{ThreadKey: target}
	}
	return Recipient{ID: target}
}

// GroupRecipient addresses a new group thread spanning the given users.
func GroupRecipient(ids []string) Recipient {
	return Recipient{IDs: ids}
}

// Message is the message body of an outbound send.
type Message struct {
	Text         string       `json:"text,omitempty"`
	Attachment   *Attachment  `json:"attachment,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// Attachment wraps a structured template payload.
type Attachment struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// QuickReply is one tappable suggestion under a message.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

// OutboundMessage is the full me/messages envelope.
type OutboundMessage struct {
	Recipient Recipient `json:"recipient"`
	Message   Message   `json:"message"`
}

// SendResponse is the platform's acknowledgment of a send.
type SendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	ThreadKey   string `json:"thread_key"`
}

// PostMessage sends an outbound message.
func (c *Client) PostMessage(ctx context.Context, token string, msg OutboundMessage) (*SendResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "me/messages", token, nil, msg)
	if err != nil {
		return nil, err
	}
	resp := &SendResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PostText sends a plain text message to a target.
func (c *Client) PostText(ctx context.Context, token, target, text string) (*SendResponse, error) {
	return c.PostMessage(ctx, token, OutboundMessage{
		Recipient: RecipientFor(target),
		Message:   Message{Text: text},
	})
}

// RenameThread sets a group thread's name.
func (c *Client) RenameThread(ctx context.Context, token, thread, name string) error {
	_, err := c.do(ctx, http.MethodPost, thread+"/threadname", token, nil, map[string]string{"name": name})
	return err
}

// AddToGroup adds participants to a group thread.
func (c *Client) AddToGroup(ctx context.Context, token, thread string, recipients []string) error {
	_, err := c.do(ctx, http.MethodPost, thread+"/participants", token, nil, map[string][]string{"to": recipients})
	return err
}

// RemoveFromGroup removes participants from a group thread.
func (c *Client) RemoveFromGroup(ctx context.Context, token, thread string, recipients []string) error {
	_, err := c.do(ctx, http.MethodDelete, thread+"/participants", token, nil, map[string][]string{"to": recipients})
	return err
}

// Thread is one conversation in the bot's inbox.
type Thread struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Participants struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	} `json:"participants"`
}

type threadList struct {
	Data []Thread `json:"data"`
}

// Inbox lists the bot's conversation threads.
func (c *Client) Inbox(ctx context.Context, token string) ([]Thread, error) {
	query := url.Values{}
	query.Set("fields", "participants,name")
	body, err := c.do(ctx, http.MethodGet, "me/threads", token, query, nil)
	if err != nil {
		return nil, err
	}
	var list threadList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}
