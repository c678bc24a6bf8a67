package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m3rciful/menus/core/pages"
)

// Memory is an in-process Client implementation for tests and development.
// Events are injected with Dispatch; sent messages are recorded and can be
// inspected afterwards.
type Memory struct {
	mu       sync.Mutex
	nextID   int
	botID    int64
	guilds   map[int64]bool
	messages map[string]*MemoryMessage
	order    []string
	deleted  []string
	waiters  map[int]*waiter
	waiterID int
}

// MemoryMessage is the recorded state of one sent message.
type MemoryMessage struct {
	Msg       Message
	Content   *pages.Content
	Reactions []string
	Edits     int
	ReplyTo   string
}

type waiter struct {
	kind EventKind
	pred Predicate
	ch   chan Event
}

// NewMemory constructs an empty in-memory client.
func NewMemory(botID int64) *Memory {
	return &Memory{
		botID:    botID,
		guilds:   make(map[int64]bool),
		messages: make(map[string]*MemoryMessage),
		waiters:  make(map[int]*waiter),
	}
}

// MarkGuild flags a channel as guild-like (edit-in-place capable).
func (m *Memory) MarkGuild(channelID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[channelID] = true
}

// Send records a new message and returns its handle.
func (m *Memory) Send(_ context.Context, channelID int64, content *pages.Content, opts SendOptions) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := Message{ID: fmt.Sprintf("m%d", m.nextID), ChannelID: channelID}
	rec := &MemoryMessage{Msg: msg, Content: content.Clone()}
	if opts.ReplyTo != nil {
		rec.ReplyTo = opts.ReplyTo.ID
	}
	m.messages[msg.ID] = rec
	m.order = append(m.order, msg.ID)
	return msg, nil
}

// Edit replaces the content of a recorded message in place.
func (m *Memory) Edit(_ context.Context, msg Message, content *pages.Content) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[msg.ID]
	if !ok {
		return Message{}, fmt.Errorf("memory: edit of unknown message %s", msg.ID)
	}
	rec.Content = content.Clone()
	rec.Edits++
	return msg, nil
}

// Delete removes a recorded message.
func (m *Memory) Delete(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, msg.ID)
	m.deleted = append(m.deleted, msg.ID)
	return nil
}

// AddReaction appends a reaction symbol to a message.
func (m *Memory) AddReaction(_ context.Context, msg Message, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[msg.ID]
	if !ok {
		return fmt.Errorf("memory: reaction on unknown message %s", msg.ID)
	}
	rec.Reactions = append(rec.Reactions, symbol)
	return nil
}

// RemoveReaction removes one occurrence of a symbol from a message.
func (m *Memory) RemoveReaction(_ context.Context, msg Message, symbol string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[msg.ID]
	if !ok {
		return nil
	}
	for i, s := range rec.Reactions {
		if s == symbol {
			rec.Reactions = append(rec.Reactions[:i], rec.Reactions[i+1:]...)
			break
		}
	}
	return nil
}

// ClearReactions removes every reaction from a message.
func (m *Memory) ClearReactions(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.messages[msg.ID]; ok {
		rec.Reactions = nil
	}
	return nil
}

// WaitFor blocks until Dispatch delivers a qualifying event, the timeout
// elapses, or ctx is cancelled. The waiter is deregistered before returning,
// so an abandoned wait can never observe a later event.
func (m *Memory) WaitFor(ctx context.Context, kind EventKind, pred Predicate, timeout time.Duration) (Event, error) {
	w := &waiter{kind: kind, pred: pred, ch: make(chan Event, 1)}

	m.mu.Lock()
	m.waiterID++
	id := m.waiterID
	m.waiters[id] = w
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.waiters, id)
		m.mu.Unlock()
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-timer:
		return Event{}, ErrTimeout
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Dispatch injects an event, resolving the oldest registered waiter whose
// kind and predicate match. It reports whether any waiter consumed it.
func (m *Memory) Dispatch(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	matchID := 0
	for id, w := range m.waiters {
		if w.kind != ev.Kind {
			continue
		}
		if w.pred != nil && !w.pred(ev) {
			continue
		}
		if matchID == 0 || id < matchID {
			matchID = id
		}
	}
	if matchID == 0 {
		return false
	}
	m.waiters[matchID].ch <- ev
	delete(m.waiters, matchID)
	return true
}

// IsGuild reports whether MarkGuild was called for the channel.
func (m *Memory) IsGuild(channelID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guilds[channelID]
}

// BotID returns the configured bot user id.
func (m *Memory) BotID() int64 { return m.botID }

// Message returns the recorded state of a sent message, if it still exists.
func (m *Memory) Message(id string) (*MemoryMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.messages[id]
	return rec, ok
}

// Deleted returns the ids of all deleted messages in deletion order.
func (m *Memory) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// LastMessage returns the most recently sent message still live, if any.
func (m *Memory) LastMessage() (*MemoryMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if rec, ok := m.messages[m.order[i]]; ok {
			return rec, true
		}
	}
	return nil, false
}
