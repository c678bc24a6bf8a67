// Package menu implements the menu/session lifecycle engine: a single state
// machine parameterized by an input strategy (text, button, paginated, poll),
// with session registration, bounded navigation history, and terminal
// close/cancel/timeout handling.
package menu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/menus/core/logger"
	"github.com/m3rciful/menus/core/session"
	"github.com/m3rciful/menus/core/transport"
)

// Kind selects the input strategy a menu runs with.
type Kind int

const (
	// KindText collects plain text replies.
	KindText Kind = iota
	// KindButtons collects button presses routed to page callbacks.
	KindButtons
	// KindPaginated collects presses on a fixed navigation button set.
	KindPaginated
	// KindPoll aggregates votes until the poll duration elapses.
	KindPoll
)

// Menu drives one user through a sequence of pages. Construct with one of
// the NewText/NewButtons/NewPaginated/NewPoll constructors, attach pages with
// AddPages, then call Open exactly once.
//
// All cursor and page state is owned by the goroutine running Open; the only
// fields touched concurrently are the active flag, the arbitration
// generation counter, and the poll tallies, each synchronized separately.
type Menu struct {
	kind     Kind
	client   transport.Client
	registry *session.Registry
	inv      transport.Invocation
	opts     Options
	strategy inputStrategy

	pages  []*Page
	cursor int
	active atomic.Bool
	gen    atomic.Uint64

	sess   *session.Session
	input  transport.Event
	output transport.Message

	// page index whose buttons are currently drawn; -1 when none.
	drawnButtons int

	dataMu sync.Mutex
	data   map[string]any

	votesMu sync.Mutex
	votes   map[string]map[int64]struct{}
}

// NewText builds a text-reply menu.
func NewText(client transport.Client, registry *session.Registry, inv transport.Invocation, opts Options) *Menu {
	return newMenu(KindText, client, registry, inv, opts, textStrategy{})
}

// NewButtons builds a button menu whose page callbacks drive navigation.
func NewButtons(client transport.Client, registry *session.Registry, inv transport.Invocation, opts Options) *Menu {
	return newMenu(KindButtons, client, registry, inv, opts, buttonStrategy{})
}

// NewPaginated builds a menu navigated with the fixed first/prev/stop/next/last buttons.
func NewPaginated(client transport.Client, registry *session.Registry, inv transport.Invocation, opts Options) *Menu {
	return newMenu(KindPaginated, client, registry, inv, opts, paginatedStrategy{})
}

// NewPoll builds a two-page vote-aggregation menu.
func NewPoll(client transport.Client, registry *session.Registry, inv transport.Invocation, opts Options) *Menu {
	return newMenu(KindPoll, client, registry, inv, opts, pollStrategy{})
}

func newMenu(kind Kind, client transport.Client, registry *session.Registry, inv transport.Invocation, opts Options, st inputStrategy) *Menu {
	opts.normalize()
	return &Menu{
		kind:         kind,
		client:       client,
		registry:     registry,
		inv:          inv,
		opts:         opts,
		strategy:     st,
		drawnButtons: -1,
		data:         make(map[string]any),
	}
}

// AddPages attaches pages in order, assigning zero-based indices. It fails
// with a *PagesError when the list is empty, or when a fixed-shape menu gets
// the wrong count.
func (m *Menu) AddPages(list ...*Page) error {
	if len(list) == 0 {
		return &PagesError{Msg: fmt.Sprintf("there must be at least one page in a menu; expected at least 1, found %d", len(list))}
	}
	if m.kind == KindPoll && len(list) != 2 {
		return &PagesError{Msg: fmt.Sprintf("a poll must have exactly two pages, found %d", len(list))}
	}
	for i, p := range list {
		p.index = i
	}
	m.pages = append([]*Page(nil), list...)
	m.cursor = 0
	return nil
}

// Open registers a session, renders the first page, and runs the input loop
// until a terminal event. A duplicate-session failure is logged and swallowed
// so a user double-invoking a command never sees a crash: the menu simply
// does not activate. Validation errors (pages, buttons, callbacks) are
// returned before any message is sent.
func (m *Menu) Open(ctx context.Context) error {
	if err := m.validate(); err != nil {
		return err
	}

	key := session.Key{UserID: m.inv.UserID, ChannelID: m.inv.ChannelID}
	sess, restored, err := m.registry.Register(key, m.inv.GuildID, m)
	if err != nil {
		logger.Warn(ctx, "menu", "session.rejected",
			slog.Int64("user_id", key.UserID),
			slog.Int64("chat_id", key.ChannelID),
			slog.String("err", err.Error()),
		)
		return nil
	}
	m.sess = sess
	if restored {
		idx := sess.CurrentIndex()
		if idx >= 0 && idx < len(m.pages) {
			m.cursor = idx
		}
		logger.Debug(ctx, "menu", "session.restored",
			slog.Int64("user_id", key.UserID),
			slog.Int64("chat_id", key.ChannelID),
			slog.Int("page", m.cursor),
		)
	}

	m.active.Store(true)
	if err := m.render(ctx); err != nil {
		m.sess.Kill()
		m.active.Store(false)
		return err
	}
	if !restored {
		m.sess.PushHistory(m.cursor)
	}
	m.cleanupInvocation(ctx)

	logger.Debug(ctx, "menu", "open",
		slog.Int64("user_id", key.UserID),
		slog.Int64("chat_id", key.ChannelID),
		slog.Int("pages", len(m.pages)),
	)

	return m.strategy.run(ctx, m)
}

// Active reports whether the menu loop is still collecting input.
func (m *Menu) Active() bool { return m.active.Load() }

// CurrentPage returns the page under the cursor.
func (m *Menu) CurrentPage() *Page { return m.pages[m.cursor] }

// Pages returns the attached pages in order.
func (m *Menu) Pages() []*Page { return m.pages }

// Output returns the menu's rendered message handle.
func (m *Menu) Output() transport.Message { return m.output }

// Input returns the most recently accepted input event.
func (m *Menu) Input() transport.Event { return m.input }

// Session returns the registered session, nil before Open.
func (m *Menu) Session() *session.Session { return m.sess }

// Invocation returns the invocation the menu was opened from.
func (m *Menu) Invocation() transport.Invocation { return m.inv }

// SetData stores a value in the menu's state bag.
func (m *Menu) SetData(key string, value any) {
	m.dataMu.Lock()
	m.data[key] = value
	m.dataMu.Unlock()
}

// Data retrieves a value from the menu's state bag.
func (m *Menu) Data(key string) (any, bool) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Response returns the text of the last collected input.
func (m *Menu) Response() string { return m.input.Text }

// ResponseIn reports whether the last response matches any word in the list,
// case-insensitively.
func (m *Menu) ResponseIn(words []string) bool {
	resp := strings.ToLower(strings.TrimSpace(m.input.Text))
	for _, w := range words {
		if resp == strings.ToLower(w) {
			return true
		}
	}
	return false
}

// Confirmed reports whether the last response is in the confirm vocabulary.
func (m *Menu) Confirmed() bool { return m.ResponseIn(m.opts.ConfirmWords) }

// Denied reports whether the last response is in the deny vocabulary.
func (m *Menu) Denied() bool { return m.ResponseIn(m.opts.DenyWords) }

// Next advances the cursor by one page. Motion past the end of the list is a
// silent no-op: no render, no history entry.
func (m *Menu) Next(ctx context.Context) error {
	if m.cursor+1 > len(m.pages)-1 {
		return nil
	}
	m.cursor++
	return m.postMove(ctx)
}

// Previous moves the cursor back one page; a no-op on the first page.
func (m *Menu) Previous(ctx context.Context) error {
	if m.cursor-1 < 0 {
		return nil
	}
	m.cursor--
	return m.postMove(ctx)
}

// ToFirst jumps to the first page.
func (m *Menu) ToFirst(ctx context.Context) error {
	m.cursor = 0
	return m.postMove(ctx)
}

// ToLast jumps to the last page.
func (m *Menu) ToLast(ctx context.Context) error {
	m.cursor = len(m.pages) - 1
	return m.postMove(ctx)
}

// GoTo moves to the page tagged with the given name. An unmatched name
// leaves the cursor unchanged and renders nothing.
func (m *Menu) GoTo(ctx context.Context, name string) error {
	for _, p := range m.pages {
		if p.name != "" && p.name == name {
			m.cursor = p.index
			return m.postMove(ctx)
		}
	}
	return nil
}

// GoToIndex moves to the page at the given index; out-of-range is a no-op.
func (m *Menu) GoToIndex(ctx context.Context, index int) error {
	if index < 0 || index >= len(m.pages) {
		return nil
	}
	m.cursor = index
	return m.postMove(ctx)
}

// LastVisited returns the index of the page visited before the current one.
func (m *Menu) LastVisited() int {
	if m.sess == nil {
		return 0
	}
	return m.sess.LastVisited()
}

// Close terminates the menu explicitly, running the cancel path.
func (m *Menu) Close(ctx context.Context) error {
	return m.executeCancel(ctx)
}

// postMove runs the shared after-motion sequence: terminal check, history
// append, render. The render of a terminal page still happens; no further
// input is collected afterwards.
func (m *Menu) postMove(ctx context.Context) error {
	if m.kind != KindPaginated && m.CurrentPage().onNext == nil {
		m.closeSession()
	}
	if m.sess != nil {
		m.sess.PushHistory(m.cursor)
	}
	return m.render(ctx)
}

// render updates the output message with the current page. Guild channels
// are edited in place; DM-like channels get delete+send. This holds for
// every render, not only the first.
func (m *Menu) render(ctx context.Context) error {
	content := m.CurrentPage().content
	if m.opts.Template != nil {
		content = m.opts.Template.Apply(content)
	}
	safe := content.Safe()

	if m.output.Zero() {
		var so transport.SendOptions
		if m.opts.ReplyAsDefault && !m.inv.Message.Zero() {
			reply := m.inv.Message
			so.ReplyTo = &reply
		}
		msg, err := m.client.Send(ctx, m.destination(), safe, so)
		if err != nil {
			return fmt.Errorf("menu: initial send: %w", err)
		}
		m.output = msg
		return nil
	}

	if m.client.IsGuild(m.output.ChannelID) {
		msg, err := m.client.Edit(ctx, m.output, safe)
		if err != nil {
			return fmt.Errorf("menu: edit: %w", err)
		}
		m.output = msg
		return nil
	}

	if err := m.client.Delete(ctx, m.output); err != nil {
		return fmt.Errorf("menu: replace delete: %w", err)
	}
	m.drawnButtons = -1
	msg, err := m.client.Send(ctx, m.destination(), safe, transport.SendOptions{})
	if err != nil {
		return fmt.Errorf("menu: replace send: %w", err)
	}
	m.output = msg
	return nil
}

func (m *Menu) destination() int64 {
	if m.opts.Destination != 0 {
		return m.opts.Destination
	}
	return m.inv.ChannelID
}

// executeCancel runs the cancel path. A page-level OnCancel callback fully
// owns termination; otherwise the cancel page (when configured) replaces the
// output, or the output is cleaned up.
func (m *Menu) executeCancel(ctx context.Context) error {
	pg := m.CurrentPage()
	if pg.onCancel != nil {
		return pg.onCancel(ctx, m)
	}

	var err error
	if m.opts.CancelPage != nil {
		_, err = m.client.Edit(ctx, m.output, m.opts.CancelPage.Safe())
	} else {
		err = m.cleanupOutput(ctx)
	}
	m.closeSession()
	logger.Debug(ctx, "menu", "cancelled",
		slog.Int64("user_id", m.inv.UserID),
		slog.Int64("chat_id", m.inv.ChannelID),
	)
	return err
}

// executeTimeout runs the timeout path, mirroring the cancel path. Timeout
// is a terminal state, never an error surfaced to the caller.
func (m *Menu) executeTimeout(ctx context.Context) error {
	pg := m.CurrentPage()
	if pg.onTimeout != nil {
		return pg.onTimeout(ctx, m)
	}

	m.closeSession()
	var err error
	if m.opts.TimeoutPage != nil {
		_, err = m.client.Edit(ctx, m.output, m.opts.TimeoutPage.Safe())
	} else {
		err = m.cleanupOutput(ctx)
	}
	logger.Debug(ctx, "menu", "timed_out",
		slog.Int64("user_id", m.inv.UserID),
		slog.Int64("chat_id", m.inv.ChannelID),
	)
	return err
}

// closeSession releases the session slot per policy and stops the loop.
func (m *Menu) closeSession() {
	if m.sess != nil {
		m.sess.KillOrFreeze()
	}
	m.active.Store(false)
}

// cleanupOutput clears buttons and, unless persistence is requested, deletes
// the output message.
func (m *Menu) cleanupOutput(ctx context.Context) error {
	if m.output.Zero() {
		return nil
	}
	if err := m.client.ClearReactions(ctx, m.output); err != nil {
		return err
	}
	m.drawnButtons = -1
	if m.opts.Persist {
		return nil
	}
	if err := m.client.Delete(ctx, m.output); err != nil {
		return err
	}
	m.output = transport.Message{}
	return nil
}

// cleanupInvocation deletes the invoking command message in guild channels
// unless the menu is configured to keep it.
func (m *Menu) cleanupInvocation(ctx context.Context) {
	if m.opts.ShowCommandMessage || m.inv.Message.Zero() {
		return
	}
	if !m.client.IsGuild(m.inv.ChannelID) {
		return
	}
	if err := m.client.Delete(ctx, m.inv.Message); err != nil {
		logger.Debug(ctx, "menu", "invocation.cleanup_failed",
			slog.Int64("chat_id", m.inv.ChannelID),
			slog.String("err", err.Error()),
		)
	}
}

func (m *Menu) validate() error {
	if len(m.pages) == 0 {
		return &PagesError{Msg: "there must be at least one page in a menu; expected at least 1, found 0"}
	}
	switch m.kind {
	case KindButtons:
		for _, p := range m.pages {
			if p.onNext == nil {
				continue
			}
			if len(p.buttons) == 0 {
				return &ButtonsError{Msg: fmt.Sprintf("primary page %d must have at least one button", p.index)}
			}
		}
	case KindPoll:
		return m.validatePoll()
	}
	return nil
}
