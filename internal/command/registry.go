package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/graph"
	"github.com/jokr/taaskly/internal/metrics"
	"github.com/jokr/taaskly/internal/models"
	"github.com/jokr/taaskly/internal/reply"
	"github.com/jokr/taaskly/internal/store"
)

// helpPadding separates the command column from its description.
const helpPadding = 4

// Env carries the per-event context a command handler needs.
type Env struct {
	// Target is the reply target: the sender's user id, or a thread
	// key for group conversations.
	Target string
	// SenderID is always the individual sender, even in threads.
	SenderID string
	// Token authorizes outbound Graph calls for this event.
	Token string
	// Host is the requesting host, used to build extension URLs.
	Host string
}

// Handler executes one matched command. args are the positional
// arguments extracted by the rule's matcher.
type Handler func(ctx context.Context, env Env, args []string) error

// Rule is one entry of the command grammar.
type Rule struct {
	Name        string
	Description string
	matcher     matcher
	Handle      Handler
}

// GraphAPI is the slice of the Graph client command handlers use.
// *graph.Client satisfies it; tests substitute a recorder.
type GraphAPI interface {
	PostMessage(ctx context.Context, token string, msg graph.OutboundMessage) (*graph.SendResponse, error)
	RenameThread(ctx context.Context, token, thread, name string) error
	AddToGroup(ctx context.Context, token, thread string, recipients []string) error
	RemoveFromGroup(ctx context.Context, token, thread string, recipients []string) error
	Inbox(ctx context.Context, token string) ([]graph.Thread, error)
}

// Deps are the collaborators command handlers call into.
type Deps struct {
	Graph   GraphAPI
	Store   store.DataStore
	BaseURL string
	AppID   string
	Logger  zerolog.Logger
}

// Registry is the immutable, ordered command table. It is built once
// at startup and evaluated first-match-wins.
type Registry struct {
	rules []Rule
	deps  Deps
}

// NewRegistry assembles the command table.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps}

	text := func(msg graph.Message) Handler {
		return func(ctx context.Context, env Env, _ []string) error {
			return r.send(ctx, env, msg)
		}
	}

	r.register("hi", "Greeting from Taaskly", literal("hi"), text(reply.Greeting()))
	r.register("hey", "Greeting from Taaskly", literal("hey"), text(reply.Greeting()))
	r.register("hello", "Greeting from Taaskly", literal("hello"), text(reply.Greeting()))
	r.register("help", "The command you are seeing right now", literal("help"), r.handleHelp)
	r.register("button", "Send Button Template", literal("button"), text(reply.Buttons()))
	r.register("list", "Send your documents as a List Template", literal("list"), r.handleList)
	r.register("generic", "Send your documents as a Generic Template", literal("generic"), r.handleGeneric)
	r.register("open graph", "Send Open Graph Template", literal("open graph"), text(reply.OpenGraph()))
	r.register("receipt", "Send your tasks as a Receipt Template", literal("receipt"), r.handleReceipt)
	r.register("flight", "Send Boarding Pass Template", literal("flight"), r.handleFlight)
	r.register("quick reply", "Send Quick Reply", literal("quick reply"), text(reply.QuickReplies()))
	r.register("extension", "Send a web button with Extension SDK integrated", literal("extension"), r.handleExtension)
	r.register("inbox", "List your threads", literal("inbox"), r.handleInbox)
	r.register("create group <name> <id>...", "Create a group thread with the given members", createGroupPattern, r.handleCreateGroup)
	r.register("add to group <thread> <id>...", "Add members to a group thread", addToGroupPattern, r.handleAddToGroup)
	r.register("remove from group <thread> <id>...", "Remove members from a group thread", removeFromGroupPattern, r.handleRemoveFromGroup)

	return r
}

func (r *Registry) register(name, description string, m matcher, h Handler) {
	r.rules = append(r.rules, Rule{Name: name, Description: description, matcher: m, Handle: h})
}

// Dispatch normalizes raw text, finds the first matching rule and runs
// its handler. Unmatched input gets the default echo reply carrying
// the original, non-normalized text.
func (r *Registry) Dispatch(ctx context.Context, env Env, rawText string) error {
	normalized := Normalize(rawText)
	for _, rule := range r.rules {
		args, ok := rule.matcher.match(normalized)
		if !ok {
			continue
		}
		metrics.CommandsDispatched.WithLabelValues(rule.Name).Inc()
		return rule.Handle(ctx, env, args)
	}
	metrics.CommandsDispatched.WithLabelValues("default").Inc()
	return r.send(ctx, env, reply.Default(rawText))
}

func (r *Registry) send(ctx context.Context, env Env, msg graph.Message) error {
	_, err := r.deps.Graph.PostMessage(ctx, env.Token, graph.OutboundMessage{
		Recipient: graph.RecipientFor(env.Target),
		Message:   msg,
	})
	return err
}

// HelpText renders the command table, one backtick-wrapped line per
// command, the command column padded to the longest name.
func (r *Registry) HelpText() string {
	maxLen := 0
	for _, rule := range r.rules {
		if len(rule.Name) > maxLen {
			maxLen = len(rule.Name)
		}
	}
	var b strings.Builder
	for _, rule := range r.rules {
		b.WriteString("`")
		b.WriteString(rule.Name)
		b.WriteString(strings.Repeat(" ", maxLen+helpPadding-len(rule.Name)))
		b.WriteString(rule.Description)
		b.WriteString("`\n")
	}
	return b.String()
}

func (r *Registry) handleHelp(ctx context.Context, env Env, _ []string) error {
	return r.send(ctx, env, reply.Text(r.HelpText()))
}

// viewer resolves the sender to a linked user, or nil.
func (r *Registry) viewer(ctx context.Context, senderID string) *models.User {
	if r.deps.Store == nil {
		return nil
	}
	workplaceID, err := strconv.ParseInt(senderID, 10, 64)
	if err != nil {
		return nil
	}
	user, err := r.deps.Store.GetUserByWorkplaceID(ctx, workplaceID)
	if err != nil {
		r.deps.Logger.Warn().Err(err).Str("sender", senderID).Msg("viewer lookup failed")
		return nil
	}
	return user
}

func (r *Registry) handleList(ctx context.Context, env Env, _ []string) error {
	docs, err := r.deps.Store.ListDocumentsForViewer(ctx, r.viewer(ctx, env.SenderID), 4)
	if err != nil {
		return err
	}
	return r.send(ctx, env, reply.List(r.deps.BaseURL, docs))
}

func (r *Registry) handleGeneric(ctx context.Context, env Env, _ []string) error {
	docs, err := r.deps.Store.ListDocumentsForViewer(ctx, r.viewer(ctx, env.SenderID), 10)
	if err != nil {
		return err
	}
	return r.send(ctx, env, reply.Generic(r.deps.BaseURL, docs))
}

func (r *Registry) handleReceipt(ctx context.Context, env Env, _ []string) error {
	tasks, err := r.deps.Store.ListTasksWithOwners(ctx, 5)
	if err != nil {
		return err
	}
	name := "Taaskly user"
	if user := r.viewer(ctx, env.SenderID); user != nil {
		name = user.Username
	}
	return r.send(ctx, env, reply.Receipt(name, tasks, time.Now()))
}

func (r *Registry) handleFlight(ctx context.Context, env Env, _ []string) error {
	name := "Taaskly user"
	if user := r.viewer(ctx, env.SenderID); user != nil {
		name = user.Username
	}
	return r.send(ctx, env, reply.FlightPass(name))
}

func (r *Registry) handleExtension(ctx context.Context, env Env, _ []string) error {
	return r.send(ctx, env, reply.Extension(env.Host, r.deps.AppID))
}

func (r *Registry) handleInbox(ctx context.Context, env Env, _ []string) error {
	threads, err := r.deps.Graph.Inbox(ctx, env.Token)
	if err != nil {
		return err
	}
	return r.send(ctx, env, reply.Inbox(threads))
}

// handleCreateGroup opens a new group thread with the given members
// and renames it. args: [name, id...].
func (r *Registry) handleCreateGroup(ctx context.Context, env Env, args []string) error {
	name, ids := args[0], args[1:]
	resp, err := r.deps.Graph.PostMessage(ctx, env.Token, graph.OutboundMessage{
		Recipient: graph.GroupRecipient(ids),
		Message:   reply.Text(fmt.Sprintf("Welcome to %s!", name)),
	})
	if err != nil {
		return err
	}
	if resp.ThreadKey != "" {
		if err := r.deps.Graph.RenameThread(ctx, env.Token, resp.ThreadKey, name); err != nil {
			return err
		}
	}
	return r.send(ctx, env, reply.Text(fmt.Sprintf("Created group %s with %d member(s).", name, len(ids))))
}

// handleAddToGroup args: [thread, id...].
func (r *Registry) handleAddToGroup(ctx context.Context, env Env, args []string) error {
	thread, ids := args[0], args[1:]
	if err := r.deps.Graph.AddToGroup(ctx, env.Token, thread, ids); err != nil {
		return err
	}
	return r.send(ctx, env, reply.Text(fmt.Sprintf("Added %d member(s) to %s.", len(ids), thread)))
}

// handleRemoveFromGroup args: [thread, id...].
func (r *Registry) handleRemoveFromGroup(ctx context.Context, env Env, args []string) error {
	thread, ids := args[0], args[1:]
	if err := r.deps.Graph.RemoveFromGroup(ctx, env.Token, thread, ids); err != nil {
		return err
	}
	return r.send(ctx, env, reply.Text(fmt.Sprintf("Removed %d member(s) from %s.", len(ids), thread)))
}
