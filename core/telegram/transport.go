package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/menus/core/pages"
	"github.com/m3rciful/menus/core/telegram/callbacks"
	"github.com/m3rciful/menus/core/telegram/format"
	"github.com/m3rciful/menus/core/telegram/keyboard"
	"github.com/m3rciful/menus/core/transport"

	tele "gopkg.in/telebot.v4"
)

// buttonUnique tags inline-keyboard callbacks owned by the menu transport.
const buttonUnique = "menu_btn"

// Transport adapts a telebot bot to the menu engine's transport.Client.
//
// Telegram has no free-form message reactions for bots, so buttons are
// emulated with an inline keyboard: every AddReaction redraws the keyboard
// with one button per symbol. A press is surfaced as a reaction-add; pressing
// the same button again toggles it off and is surfaced as a reaction-remove.
type Transport struct {
	bot *tele.Bot

	mu      sync.Mutex
	waiters map[int64]*eventWaiter
	nextID  int64
	drawn   map[string][]string
	pressed map[string]map[int64]map[string]bool
}

type eventWaiter struct {
	id   int64
	kind transport.EventKind
	pred transport.Predicate
	ch   chan transport.Event
}

// NewTransport builds an unbound transport. Handlers can be registered
// immediately; call Bind with the constructed bot before updates flow.
func NewTransport() *Transport {
	return &Transport{
		waiters: make(map[int64]*eventWaiter),
		drawn:   make(map[string][]string),
		pressed: make(map[string]map[int64]map[string]bool),
	}
}

// Bind attaches the bot once the runtime has constructed it.
func (t *Transport) Bind(bot *tele.Bot) {
	t.bot = bot
}

// Routes returns the handlers the transport needs on the bot. Register them
// via RunOptions.Routes; bots that multiplex OnText or OnCallback themselves
// should call HandleText/HandleCallback from their own handlers instead.
func (t *Transport) Routes() []Route {
	return []Route{
		{Endpoint: tele.OnText, Handler: t.HandleText},
		{Endpoint: tele.OnCallback, Handler: t.HandleCallback},
	}
}

// HandleText feeds an incoming text message to any matching waiter.
func (t *Transport) HandleText(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Sender == nil || msg.Chat == nil {
		return nil
	}
	t.dispatch(transport.Event{
		Kind:   transport.MessageReceived,
		UserID: msg.Sender.ID,
		Message: transport.Message{
			ID:        strconv.Itoa(msg.ID),
			ChannelID: msg.Chat.ID,
		},
		Text: msg.Text,
	})
	return nil
}

// HandleCallback processes menu-button presses, toggling the per-user
// pressed state and dispatching the corresponding reaction event. Callbacks
// not owned by the transport are ignored.
func (t *Transport) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || cb.Sender == nil || cb.Message == nil {
		return nil
	}
	unique, symbol := callbacks.ParseCallbackData(cb)
	if unique != buttonUnique || symbol == "" {
		return nil
	}

	msg := transport.Message{
		ID:        strconv.Itoa(cb.Message.ID),
		ChannelID: cb.Message.Chat.ID,
	}
	userID := cb.Sender.ID

	kind := transport.ReactionAdded
	t.mu.Lock()
	key := messageKey(msg)
	users, ok := t.pressed[key]
	if !ok {
		users = make(map[int64]map[string]bool)
		t.pressed[key] = users
	}
	held := users[userID]
	if held == nil {
		held = make(map[string]bool)
		users[userID] = held
	}
	if held[symbol] {
		delete(held, symbol)
		kind = transport.ReactionRemoved
	} else {
		held[symbol] = true
	}
	t.mu.Unlock()

	_ = c.Respond(&tele.CallbackResponse{})
	t.dispatch(transport.Event{
		Kind:    kind,
		UserID:  userID,
		Message: msg,
		Symbol:  symbol,
	})
	return nil
}

// Send renders the content as a Markdown message in the given chat.
func (t *Transport) Send(ctx context.Context, channelID int64, content *pages.Content, opts transport.SendOptions) (transport.Message, error) {
	_ = ctx
	sendOpts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if opts.ReplyTo != nil {
		if id, err := strconv.Atoi(opts.ReplyTo.ID); err == nil {
			sendOpts.ReplyTo = &tele.Message{
				ID:   id,
				Chat: &tele.Chat{ID: opts.ReplyTo.ChannelID},
			}
		}
	}
	sent, err := t.bot.Send(tele.ChatID(channelID), renderContent(content), sendOpts)
	if err != nil {
		return transport.Message{}, fmt.Errorf("telegram: send: %w", err)
	}
	return transport.Message{ID: strconv.Itoa(sent.ID), ChannelID: sent.Chat.ID}, nil
}

// Edit replaces the message text, re-attaching the currently drawn keyboard
// so an in-place page change keeps its buttons.
func (t *Transport) Edit(ctx context.Context, msg transport.Message, content *pages.Content) (transport.Message, error) {
	_ = ctx
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	t.mu.Lock()
	symbols := append([]string(nil), t.drawn[messageKey(msg)]...)
	t.mu.Unlock()
	if len(symbols) > 0 {
		opts.ReplyMarkup = buttonMarkup(symbols)
	}
	edited, err := t.bot.Edit(msgSig(msg), renderContent(content), opts)
	if err != nil {
		return transport.Message{}, fmt.Errorf("telegram: edit: %w", err)
	}
	return transport.Message{ID: strconv.Itoa(edited.ID), ChannelID: edited.Chat.ID}, nil
}

// Delete removes the message and forgets its button state.
func (t *Transport) Delete(ctx context.Context, msg transport.Message) error {
	_ = ctx
	if err := t.bot.Delete(msgSig(msg)); err != nil {
		return fmt.Errorf("telegram: delete: %w", err)
	}
	t.forget(msg)
	return nil
}

// AddReaction appends a button symbol and redraws the keyboard.
func (t *Transport) AddReaction(ctx context.Context, msg transport.Message, symbol string) error {
	_ = ctx
	t.mu.Lock()
	key := messageKey(msg)
	symbols := t.drawn[key]
	exists := false
	for _, s := range symbols {
		if s == symbol {
			exists = true
			break
		}
	}
	if !exists {
		symbols = append(symbols, symbol)
		t.drawn[key] = symbols
	}
	redraw := append([]string(nil), symbols...)
	t.mu.Unlock()
	if exists {
		return nil
	}
	if _, err := t.bot.EditReplyMarkup(msgSig(msg), buttonMarkup(redraw)); err != nil {
		return fmt.Errorf("telegram: add button: %w", err)
	}
	return nil
}

// RemoveReaction clears one user's pressed mark for a symbol. The keyboard
// itself stays; only the toggle state resets so the button fires as an add
// on the next press.
func (t *Transport) RemoveReaction(ctx context.Context, msg transport.Message, symbol string, userID int64) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	if users, ok := t.pressed[messageKey(msg)]; ok {
		if held := users[userID]; held != nil {
			delete(held, symbol)
		}
	}
	return nil
}

// ClearReactions removes the keyboard and all button state for the message.
func (t *Transport) ClearReactions(ctx context.Context, msg transport.Message) error {
	_ = ctx
	t.forget(msg)
	if _, err := t.bot.EditReplyMarkup(msgSig(msg), &tele.ReplyMarkup{}); err != nil {
		return fmt.Errorf("telegram: clear buttons: %w", err)
	}
	return nil
}

// WaitFor blocks until an event of the given kind matches pred, the timeout
// elapses, or ctx is cancelled. The waiter is deregistered before returning,
// so a late event can never reach a finished wait.
func (t *Transport) WaitFor(ctx context.Context, kind transport.EventKind, pred transport.Predicate, timeout time.Duration) (transport.Event, error) {
	w := &eventWaiter{
		kind: kind,
		pred: pred,
		ch:   make(chan transport.Event, 1),
	}
	t.mu.Lock()
	t.nextID++
	w.id = t.nextID
	t.waiters[w.id] = w
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.waiters, w.id)
		t.mu.Unlock()
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-timeoutCh:
		return transport.Event{}, transport.ErrTimeout
	case <-ctx.Done():
		return transport.Event{}, ctx.Err()
	}
}

// IsGuild reports whether the chat is a group or channel. Telegram assigns
// negative IDs to groups, supergroups and channels; private chats are
// positive.
func (t *Transport) IsGuild(channelID int64) bool {
	return channelID < 0
}

// BotID returns the bot's own user ID.
func (t *Transport) BotID() int64 {
	if t.bot == nil || t.bot.Me == nil {
		return 0
	}
	return t.bot.Me.ID
}

// dispatch hands the event to the oldest matching waiter, if any.
func (t *Transport) dispatch(ev transport.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var match *eventWaiter
	for _, w := range t.waiters {
		if w.kind != ev.Kind {
			continue
		}
		if w.pred != nil && !w.pred(ev) {
			continue
		}
		if match == nil || w.id < match.id {
			match = w
		}
	}
	if match == nil {
		return
	}
	delete(t.waiters, match.id)
	match.ch <- ev
}

func (t *Transport) forget(msg transport.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := messageKey(msg)
	delete(t.drawn, key)
	delete(t.pressed, key)
}

func messageKey(msg transport.Message) string {
	return strconv.FormatInt(msg.ChannelID, 10) + "/" + msg.ID
}

// msgSig satisfies tele.Editable for a stored message handle.
type msgSig transport.Message

func (m msgSig) MessageSig() (string, int64) {
	return m.ID, m.ChannelID
}

// buttonMarkup lays the symbols out five per row.
func buttonMarkup(symbols []string) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, len(symbols))
	for i, s := range symbols {
		btns[i] = keyboard.InlineBtn{Text: s, Unique: buttonUnique, Data: s}
	}
	return keyboard.InlineButtonsNPerRow(btns, 5)
}

// mdSafe escapes markdown specials in structural parts of the message so a
// title containing * or _ does not break parsing. Free-form text stays raw.
func mdSafe(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return out
}

// renderContent flattens page content into a Markdown message body.
func renderContent(c *pages.Content) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	if c.Title != "" {
		b.WriteString("*")
		b.WriteString(mdSafe(c.Title))
		b.WriteString("*")
	}
	if c.Description != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Description)
	}
	for _, f := range c.Fields {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("*")
		b.WriteString(mdSafe(f.Name))
		b.WriteString("*\n")
		b.WriteString(f.Value)
	}
	if c.Footer != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("_")
		b.WriteString(mdSafe(c.Footer))
		b.WriteString("_")
	}
	return b.String()
}
