// Package transport defines the narrow chat-client surface the menu engine
// depends on. Implementations own all network I/O; the engine only sends,
// edits, and waits for events through this interface.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/menus/core/pages"
)

// ErrTimeout is returned by WaitFor when no qualifying event arrived in time.
var ErrTimeout = errors.New("transport: wait timed out")

// Message identifies one outbound message owned by a menu.
type Message struct {
	ID        string
	ChannelID int64
}

// Zero reports whether the message reference is unset.
func (m Message) Zero() bool {
	return m.ID == "" && m.ChannelID == 0
}

// EventKind discriminates the event streams a menu can wait on.
type EventKind int

const (
	// MessageReceived is a plain text reply from a user.
	MessageReceived EventKind = iota
	// ReactionAdded is a button press (or platform reaction add).
	ReactionAdded
	// ReactionRemoved is a button un-press (reaction removal / toggle-off).
	ReactionRemoved
)

// Event is one resolved user interaction.
type Event struct {
	Kind    EventKind
	UserID  int64
	Message Message
	Symbol  string
	Text    string
}

// Predicate filters events during WaitFor. Only events for which it returns
// true resolve the wait.
type Predicate func(Event) bool

// SendOptions tweaks a single Send call.
type SendOptions struct {
	// ReplyTo makes the message a reply to the given message when set.
	ReplyTo *Message
}

// Client is the minimum chat-platform surface the menu engine consumes.
// Every method that can block takes a context; cancelling it abandons the
// call without side effects on engine state.
type Client interface {
	Send(ctx context.Context, channelID int64, content *pages.Content, opts SendOptions) (Message, error)
	Edit(ctx context.Context, msg Message, content *pages.Content) (Message, error)
	Delete(ctx context.Context, msg Message) error

	AddReaction(ctx context.Context, msg Message, symbol string) error
	RemoveReaction(ctx context.Context, msg Message, symbol string, userID int64) error
	ClearReactions(ctx context.Context, msg Message) error

	// WaitFor blocks until an event of the given kind satisfies pred, the
	// timeout elapses (ErrTimeout), or ctx is cancelled (ctx.Err()). A wait
	// abandoned through ctx must never deliver a late event.
	WaitFor(ctx context.Context, kind EventKind, pred Predicate, timeout time.Duration) (Event, error)

	// IsGuild reports whether the channel is a multi-user channel that
	// supports editing messages in place. DM-like channels get delete+send.
	IsGuild(channelID int64) bool

	// BotID is the client's own user id, used to ignore self-reactions.
	BotID() int64
}

// Invocation carries the identity of the command invocation that opened a
// menu: who asked, where, and the triggering message itself.
type Invocation struct {
	UserID    int64
	ChannelID int64
	GuildID   int64
	Message   Message
}
