package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/command"
	"github.com/jokr/taaskly/internal/config"
	"github.com/jokr/taaskly/internal/graph"
)

// fakeGraph records outbound Graph calls. It satisfies both the
// webhook Sender and the command GraphAPI interfaces.
type fakeGraph struct {
	texts    []string
	targets  []string
	messages []graph.OutboundMessage
	renames  []string
}

func (f *fakeGraph) PostText(ctx context.Context, token, target, text string) (*graph.SendResponse, error) {
	f.texts = append(f.texts, text)
	f.targets = append(f.targets, target)
	return &graph.SendResponse{MessageID: "mid.fake"}, nil
}

func (f *fakeGraph) PostMessage(ctx context.Context, token string, msg graph.OutboundMessage) (*graph.SendResponse, error) {
	f.messages = append(f.messages, msg)
	return &graph.SendResponse{MessageID: "mid.fake", ThreadKey: "t_999"}, nil
}

func (f *fakeGraph) RenameThread(ctx context.Context, token, thread, name string) error {
	f.renames = append(f.renames, name)
	return nil
}

func (f *fakeGraph) AddToGroup(ctx context.Context, token, thread string, recipients []string) error {
	return nil
}

func (f *fakeGraph) RemoveFromGroup(ctx context.Context, token, thread string, recipients []string) error {
	return nil
}

func (f *fakeGraph) Inbox(ctx context.Context, token string) ([]graph.Thread, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeGraph) {
	t.Helper()
	cfg := &config.Config{
		VerifyToken:  "token-under-test",
		AccessToken:  "static-token",
		BaseURL:      "https://taaskly.example/",
		ValidateXHub: false,
	}
	fake := &fakeGraph{}
	commands := command.NewRegistry(command.Deps{
		Graph:   fake,
		BaseURL: cfg.BaseURL,
		Logger:  zerolog.Nop(),
	})
	resolver := graph.NewTokenResolver(cfg.AccessToken, nil)
	h := NewHandler(cfg, nil, nil, fake, resolver, commands, zerolog.Nop())
	return h, fake
}

func TestVerifyChallengeEchoesChallenge(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/callback?hub.mode=subscribe&hub.challenge=123&hub.verify_token=token-under-test", nil)
	rec := httptest.NewRecorder()
	h.VerifyChallenge(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "123" {
		t.Fatalf("expected literal challenge, got %q", rec.Body.String())
	}
}

func TestVerifyChallengeWrongToken(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/callback?hub.mode=subscribe&hub.challenge=123&hub.verify_token=wrong", nil)
	rec := httptest.NewRecorder()
	h.VerifyChallenge(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong verify token, got %d", rec.Code)
	}
}

func TestVerifyChallengeMissingParams(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/callback?hub.mode=subscribe", nil)
	rec := httptest.NewRecorder()
	h.VerifyChallenge(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing params, got %d", rec.Code)
	}
}

func TestMessageCallbackRejectsBatchedEntries(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"1"}}]},{"messaging":[{"sender":{"id":"2"}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.MessageCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for batched entries, got %d", rec.Code)
	}
}

func TestMessageCallbackEnforcesSignature(t *testing.T) {
	h, _ := newTestHandler(t)
	h.cfg.ValidateXHub = true

	body := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"1"},"message":{"mid":"m1","text":"hi"}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.MessageCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without valid signature, got %d", rec.Code)
	}
}
