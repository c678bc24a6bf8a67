package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/menus/core/transport"
)

// inputStrategy is the per-kind input loop run after the first render.
type inputStrategy interface {
	run(ctx context.Context, m *Menu) error
}

// errClosed signals that the menu was terminated from another goroutine
// while an input wait was in flight.
var errClosed = errors.New("menu closed")

// textStrategy collects plain text replies from the menu owner. A quit word
// cancels; any other reply is handed to the page's OnNext callback. OnFail,
// when the page defines it, runs at the top of every iteration after the
// first, so a page that did not transition gets its re-prompt.
type textStrategy struct{}

func (textStrategy) run(ctx context.Context, m *Menu) error {
	first := true
	for m.Active() {
		if !first {
			if fn := m.CurrentPage().onFail; fn != nil {
				if err := fn(ctx, m); err != nil {
					return err
				}
			}
		}
		first = false

		ev, ok, err := m.awaitMessage(ctx)
		if err != nil || !ok {
			return err
		}
		m.input = ev
		m.cleanupReply(ctx, ev)

		if m.ResponseIn(m.opts.QuitWords) {
			return m.executeCancel(ctx)
		}
		if fn := m.CurrentPage().onNext; fn != nil {
			if err := fn(ctx, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// buttonStrategy draws the current page's buttons and routes presses to the
// page's OnNext callback. Presses outside the page's button set are ignored.
type buttonStrategy struct{}

func (buttonStrategy) run(ctx context.Context, m *Menu) error {
	for m.Active() {
		if err := m.placePageButtons(ctx); err != nil {
			return err
		}
		ev, ok, err := m.awaitButton(ctx)
		if err != nil || !ok {
			return err
		}
		sym, matched := m.matchButton(ev.Symbol, m.CurrentPage().buttons)
		if !matched {
			continue
		}
		ev.Symbol = sym
		m.input = ev
		m.removeTrigger(ctx, ev)

		if fn := m.CurrentPage().onNext; fn != nil {
			if err := fn(ctx, m); err != nil {
				return err
			}
		}
	}
	return m.clearLeftoverButtons(ctx)
}

// paginatedStrategy navigates a fixed page list with the configured
// navigation buttons. Page callbacks never run; the transition table is the
// whole behavior.
type paginatedStrategy struct{}

func (paginatedStrategy) run(ctx context.Context, m *Menu) error {
	nav := m.navButtons()
	for m.Active() {
		// A delete+send render replacement drops the buttons with the
		// old message, so re-place whenever none are drawn.
		if m.drawnButtons == -1 {
			if err := m.placeButtons(ctx, nav); err != nil {
				return err
			}
			m.drawnButtons = m.cursor
		}
		ev, ok, err := m.awaitButton(ctx)
		if err != nil || !ok {
			return err
		}
		sym, matched := m.matchButton(ev.Symbol, nav)
		if !matched {
			continue
		}
		ev.Symbol = sym
		m.input = ev
		m.removeTrigger(ctx, ev)

		if err := m.transition(ctx, sym, nav); err != nil {
			return err
		}
	}
	return m.clearLeftoverButtons(ctx)
}

// navButtons returns the glyphs actually displayed. A full five-glyph set
// without SkipButtons collapses to the middle previous/stop/next trio.
func (m *Menu) navButtons() []string {
	b := m.opts.NavButtons
	if len(b) == 5 && !m.opts.SkipButtons {
		return b[1:4]
	}
	return b
}

// transition maps a pressed navigation glyph to its motion. The glyph order
// is first/previous/stop/next/last; a three-glyph set starts at previous.
func (m *Menu) transition(ctx context.Context, symbol string, nav []string) error {
	actions := []func(context.Context) error{m.ToFirst, m.Previous, nil, m.Next, m.ToLast}
	if len(nav) == 3 {
		actions = []func(context.Context) error{m.Previous, nil, m.Next}
	}
	for i, s := range nav {
		if s != symbol || i >= len(actions) {
			continue
		}
		if actions[i] == nil {
			return m.executeCancel(ctx)
		}
		return actions[i](ctx)
	}
	return nil
}

// awaitMessage waits for a text reply from the menu owner. Timeout runs the
// timeout path and reports no input; context cancellation reports no input
// without error.
func (m *Menu) awaitMessage(ctx context.Context) (transport.Event, bool, error) {
	pred := func(ev transport.Event) bool {
		if m.opts.Predicate != nil {
			return m.opts.Predicate(ev, m)
		}
		return ev.UserID == m.inv.UserID && ev.Message.ChannelID == m.inv.ChannelID
	}
	ev, err := m.client.WaitFor(ctx, transport.MessageReceived, pred, m.opts.Timeout)
	switch {
	case err == nil:
		return ev, true, nil
	case errors.Is(err, transport.ErrTimeout):
		return transport.Event{}, false, m.executeTimeout(ctx)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return transport.Event{}, false, nil
	default:
		return transport.Event{}, false, err
	}
}

// awaitButton races a reaction-add wait, a reaction-remove wait, and a
// closed-elsewhere watch. The first to finish wins; the shared context
// cancels the losers. Every outcome carries the generation it was started
// under, and stale generations are discarded, so a late delivery from a
// superseded wait can never be mistaken for current input.
func (m *Menu) awaitButton(ctx context.Context) (transport.Event, bool, error) {
	gen := m.gen.Add(1)
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		gen uint64
		ev  transport.Event
		err error
	}
	results := make(chan outcome, 3)

	pred := func(ev transport.Event) bool { return m.acceptButton(ev) }
	for _, kind := range []transport.EventKind{transport.ReactionAdded, transport.ReactionRemoved} {
		kind := kind
		go func() {
			ev, err := m.client.WaitFor(raceCtx, kind, pred, m.opts.Timeout)
			results <- outcome{gen: gen, ev: ev, err: err}
		}()
	}
	go func() {
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-raceCtx.Done():
				return
			case <-tick.C:
				if !m.active.Load() {
					results <- outcome{gen: gen, err: errClosed}
					return
				}
			}
		}
	}()

	for {
		out := <-results
		if out.gen != m.gen.Load() {
			continue
		}
		switch {
		case out.err == nil:
			return out.ev, true, nil
		case errors.Is(out.err, errClosed):
			return transport.Event{}, false, nil
		case errors.Is(out.err, transport.ErrTimeout):
			return transport.Event{}, false, m.executeTimeout(ctx)
		case errors.Is(out.err, context.Canceled), errors.Is(out.err, context.DeadlineExceeded):
			return transport.Event{}, false, nil
		default:
			return transport.Event{}, false, out.err
		}
	}
}

// acceptButton is the default button-event filter: the owner's presses on
// the menu's own output message.
func (m *Menu) acceptButton(ev transport.Event) bool {
	if m.opts.Predicate != nil {
		return m.opts.Predicate(ev, m)
	}
	return ev.UserID == m.inv.UserID &&
		ev.UserID != m.client.BotID() &&
		ev.Message.ID == m.output.ID
}

// matchButton resolves a raw event symbol against a candidate set. Custom
// emoji arrive as "name:id"; a candidate equal to either the full form or
// the name part matches, first candidate wins.
func (m *Menu) matchButton(symbol string, candidates []string) (string, bool) {
	name := symbol
	if i := strings.IndexByte(symbol, ':'); i > 0 {
		name = symbol[:i]
	}
	for _, c := range candidates {
		if c == symbol || c == name {
			return c, true
		}
	}
	return "", false
}

// placePageButtons syncs the drawn buttons with the current page, clearing
// the previous page's set first.
func (m *Menu) placePageButtons(ctx context.Context) error {
	if m.drawnButtons == m.cursor {
		return nil
	}
	if m.drawnButtons != -1 {
		if err := m.client.ClearReactions(ctx, m.output); err != nil {
			return err
		}
	}
	if err := m.placeButtons(ctx, m.CurrentPage().buttons); err != nil {
		return err
	}
	m.drawnButtons = m.cursor
	return nil
}

// placeButtons adds the symbols in order, pacing consecutive placements with
// the configured delay. A placement failure is fatal for the menu.
func (m *Menu) placeButtons(ctx context.Context, symbols []string) error {
	for i, s := range symbols {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.ButtonDelay):
			}
		}
		if err := m.client.AddReaction(ctx, m.output, s); err != nil {
			return fmt.Errorf("menu: place button %q: %w", s, err)
		}
	}
	return nil
}

// removeTrigger takes the pressed reaction back off the output message in
// guild channels so the same button can be pressed again.
func (m *Menu) removeTrigger(ctx context.Context, ev transport.Event) {
	if ev.Kind != transport.ReactionAdded {
		return
	}
	if !m.client.IsGuild(m.output.ChannelID) {
		return
	}
	_ = m.client.RemoveReaction(ctx, m.output, ev.Symbol, ev.UserID)
}

// cleanupReply deletes the owner's text reply in guild channels to keep the
// conversation view tidy.
func (m *Menu) cleanupReply(ctx context.Context, ev transport.Event) {
	if ev.Message.Zero() {
		return
	}
	if !m.client.IsGuild(ev.Message.ChannelID) {
		return
	}
	_ = m.client.Delete(ctx, ev.Message)
}

// clearLeftoverButtons clears buttons left on a surviving output message
// after a terminal-page exit. Cancel and timeout paths clean up on their
// own; this covers the loop falling through.
func (m *Menu) clearLeftoverButtons(ctx context.Context) error {
	if m.output.Zero() || m.drawnButtons == -1 {
		return nil
	}
	if err := m.client.ClearReactions(ctx, m.output); err != nil {
		return err
	}
	m.drawnButtons = -1
	return nil
}
