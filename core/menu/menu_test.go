package menu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/menus/core/pages"
	"github.com/m3rciful/menus/core/session"
	"github.com/m3rciful/menus/core/transport"
)

const testBotID = 999

func testInvocation() transport.Invocation {
	return transport.Invocation{UserID: 1, ChannelID: 100}
}

func testOptions() Options {
	return Options{
		Timeout:     2 * time.Second,
		ButtonDelay: time.Millisecond,
	}
}

// dispatch retries until a waiter consumes the event, so tests never race the
// menu goroutine registering its wait.
func dispatch(t *testing.T, mem *transport.Memory, ev transport.Event) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mem.Dispatch(ev) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no waiter consumed event kind=%d symbol=%q", ev.Kind, ev.Symbol)
}

// pressNav waits for the current output message to carry the full navigation
// button set, then presses one. The output id is re-read on every attempt
// because a DM render replaces the message between presses.
func pressNav(t *testing.T, mem *transport.Memory, inv transport.Invocation, symbol string, buttons int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := mem.LastMessage()
		if ok && len(rec.Reactions) == buttons {
			if mem.Dispatch(transport.Event{
				Kind:    transport.ReactionAdded,
				UserID:  inv.UserID,
				Message: transport.Message{ID: rec.Msg.ID, ChannelID: inv.ChannelID},
				Symbol:  symbol,
			}) {
				return
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("navigation press %q was never consumed", symbol)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("menu did not terminate")
		return nil
	}
}

func TestAddPagesAssignsIndices(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	a := NewPage(pages.NewContent("a", "first"))
	b := NewPage(pages.NewContent("b", "second"))
	require.Equal(t, -1, a.Index())

	require.NoError(t, m.AddPages(a, b))
	assert.Equal(t, 0, a.Index())
	assert.Equal(t, 1, b.Index())
	assert.Len(t, m.Pages(), 2)
}

func TestAddPagesRejectsEmptyList(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	err := m.AddPages()
	var perr *PagesError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "PAGES_INVALID", perr.Code())
}

func TestOpenWithoutPagesFails(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	err := m.Open(context.Background())
	var perr *PagesError
	require.ErrorAs(t, err, &perr)
}

func TestButtonMenuRequiresButtonsOnPrimaryPages(t *testing.T) {
	m := NewButtons(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	primary := NewPage(pages.NewContent("pick", "")).
		OnNext(func(ctx context.Context, m *Menu) error { return nil })
	terminal := NewPage(pages.NewContent("done", ""))
	require.NoError(t, m.AddPages(primary, terminal))

	err := m.Open(context.Background())
	var berr *ButtonsError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "BUTTONS_INVALID", berr.Code())
}

func TestButtonMenuAllowsTerminalPageWithoutButtons(t *testing.T) {
	m := NewButtons(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	primary := NewPage(pages.NewContent("pick", "")).
		SetButtons("✅").
		OnNext(func(ctx context.Context, m *Menu) error { return nil })
	terminal := NewPage(pages.NewContent("done", ""))
	require.NoError(t, m.AddPages(primary, terminal))

	assert.NoError(t, m.validate())
}

func TestNavigationSaturatesAtBounds(t *testing.T) {
	ctx := context.Background()
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	noop := func(ctx context.Context, m *Menu) error { return nil }
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("a", "")).OnNext(noop),
		NewPage(pages.NewContent("b", "")).OnNext(noop),
		NewPage(pages.NewContent("c", "")).OnNext(noop),
	))

	require.NoError(t, m.Previous(ctx))
	assert.Equal(t, 0, m.CurrentPage().Index())

	require.NoError(t, m.ToLast(ctx))
	assert.Equal(t, 2, m.CurrentPage().Index())

	require.NoError(t, m.Next(ctx))
	assert.Equal(t, 2, m.CurrentPage().Index())

	require.NoError(t, m.ToFirst(ctx))
	assert.Equal(t, 0, m.CurrentPage().Index())
}

func TestGoToByNameAndUnmatched(t *testing.T) {
	ctx := context.Background()
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	noop := func(ctx context.Context, m *Menu) error { return nil }
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("a", "")).OnNext(noop),
		NewPage(pages.NewContent("b", "")).SetName("target").OnNext(noop),
	))

	require.NoError(t, m.GoTo(ctx, "target"))
	assert.Equal(t, 1, m.CurrentPage().Index())

	require.NoError(t, m.GoTo(ctx, "missing"))
	assert.Equal(t, 1, m.CurrentPage().Index())
}

func TestGoToIndexOutOfRangeIsNoOp(t *testing.T) {
	ctx := context.Background()
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	noop := func(ctx context.Context, m *Menu) error { return nil }
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("a", "")).OnNext(noop),
		NewPage(pages.NewContent("b", "")).OnNext(noop),
	))

	require.NoError(t, m.GoToIndex(ctx, 5))
	assert.Equal(t, 0, m.CurrentPage().Index())
	require.NoError(t, m.GoToIndex(ctx, -1))
	assert.Equal(t, 0, m.CurrentPage().Index())
	require.NoError(t, m.GoToIndex(ctx, 1))
	assert.Equal(t, 1, m.CurrentPage().Index())
}

func TestTextMenuConfirmFlow(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	m := NewText(mem, reg, inv, testOptions())

	ask := NewPage(pages.NewContent("Confirm", "yes or no?")).
		OnNext(func(ctx context.Context, m *Menu) error {
			if m.Confirmed() {
				return m.Next(ctx)
			}
			return nil
		})
	finished := NewPage(pages.NewContent("Done", "thanks"))
	require.NoError(t, m.AddPages(ask, finished))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	dispatch(t, mem, transport.Event{
		Kind:    transport.MessageReceived,
		UserID:  inv.UserID,
		Message: transport.Message{ID: "u1", ChannelID: inv.ChannelID},
		Text:    "yes",
	})

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.Equal(t, 1, m.CurrentPage().Index())
	assert.Equal(t, "yes", m.Response())
	assert.Equal(t, 0, reg.Len())

	// The terminal page stays rendered; the loop exit does not delete it.
	last, ok := mem.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Done", last.Content.Title)
}

func TestTextMenuQuitWordCancels(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	m := NewText(mem, reg, inv, testOptions())

	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("ask", "")).
			OnNext(func(ctx context.Context, m *Menu) error { return m.Next(ctx) }),
		NewPage(pages.NewContent("done", "")),
	))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	dispatch(t, mem, transport.Event{
		Kind:    transport.MessageReceived,
		UserID:  inv.UserID,
		Message: transport.Message{ID: "u1", ChannelID: inv.ChannelID},
		Text:    "quit",
	})

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.Equal(t, 0, m.CurrentPage().Index())
	assert.True(t, m.Output().Zero())
	assert.Equal(t, 0, reg.Len())
	_, ok := mem.LastMessage()
	assert.False(t, ok)
}

func TestTextMenuTimeoutRunsTimeoutCallback(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	opts := testOptions()
	opts.Timeout = 30 * time.Millisecond
	m := NewText(mem, reg, testInvocation(), opts)

	timedOut := make(chan struct{})
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("ask", "")).
			OnNext(func(ctx context.Context, m *Menu) error { return nil }).
			OnTimeout(func(ctx context.Context, m *Menu) error {
				close(timedOut)
				m.closeSession()
				return nil
			}),
	))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	require.NoError(t, waitDone(t, done))
	select {
	case <-timedOut:
	default:
		t.Fatal("timeout callback did not run")
	}
	assert.False(t, m.Active())
}

func TestTextMenuTimeoutDefaultCleansUp(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	opts := testOptions()
	opts.Timeout = 30 * time.Millisecond
	m := NewText(mem, reg, testInvocation(), opts)

	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("ask", "")).
			OnNext(func(ctx context.Context, m *Menu) error { return nil }),
	))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.True(t, m.Output().Zero())
	assert.Equal(t, 0, reg.Len())
}

func TestOpenSwallowsDuplicateSession(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()

	_, _, err := reg.Register(session.Key{UserID: inv.UserID, ChannelID: inv.ChannelID}, 0, nil)
	require.NoError(t, err)

	m := NewText(mem, reg, inv, testOptions())
	require.NoError(t, m.AddPages(NewPage(pages.NewContent("a", "")).
		OnNext(func(ctx context.Context, m *Menu) error { return nil })))

	require.NoError(t, m.Open(context.Background()))
	assert.False(t, m.Active())
	_, ok := mem.LastMessage()
	assert.False(t, ok, "rejected open must not send anything")
}

func TestFrozenSessionRestoresLastVisitedPage(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	policy := session.DefaultPolicy()
	policy.AllowRestore = true
	reg := session.NewRegistry(policy)
	inv := testInvocation()
	key := session.Key{UserID: inv.UserID, ChannelID: inv.ChannelID}

	tourPages := func() []*Page {
		advance := func(ctx context.Context, m *Menu) error { return m.Next(ctx) }
		return []*Page{
			NewPage(pages.NewContent("one", "")).OnNext(advance),
			NewPage(pages.NewContent("two", "")).OnNext(advance),
			NewPage(pages.NewContent("three", "")).OnNext(advance),
		}
	}

	first := NewText(mem, reg, inv, testOptions())
	require.NoError(t, first.AddPages(tourPages()...))

	done := make(chan error, 1)
	go func() { done <- first.Open(context.Background()) }()

	dispatch(t, mem, transport.Event{
		Kind:    transport.MessageReceived,
		UserID:  inv.UserID,
		Message: transport.Message{ID: "u1", ChannelID: inv.ChannelID},
		Text:    "go",
	})
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		return ok && rec.Content.Title == "two"
	}, 2*time.Second, 5*time.Millisecond)

	// With restores allowed, a quit freezes the session instead of killing it.
	dispatch(t, mem, transport.Event{
		Kind:    transport.MessageReceived,
		UserID:  inv.UserID,
		Message: transport.Message{ID: "u2", ChannelID: inv.ChannelID},
		Text:    "quit",
	})
	require.NoError(t, waitDone(t, done))

	sess := reg.Lookup(key)
	require.NotNil(t, sess)
	assert.True(t, sess.Frozen())
	assert.Equal(t, 1, sess.CurrentIndex())

	second := NewText(mem, reg, inv, testOptions())
	require.NoError(t, second.AddPages(tourPages()...))
	go func() { done <- second.Open(context.Background()) }()

	// The reopened menu resumes on the frozen session's last page.
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		return ok && rec.Content.Title == "two"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, second.CurrentPage().Index())
	assert.Same(t, sess, second.Session())
	assert.Equal(t, []int{0, 1}, sess.History(), "restore keeps history without a new entry")

	dispatch(t, mem, transport.Event{
		Kind:    transport.MessageReceived,
		UserID:  inv.UserID,
		Message: transport.Message{ID: "u3", ChannelID: inv.ChannelID},
		Text:    "quit",
	})
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, reg.Len())
}

func TestButtonMenuPressAdvances(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	m := NewButtons(mem, reg, inv, testOptions())

	pick := NewPage(pages.NewContent("pick", "")).
		SetButtons("✅", "❌").
		OnNext(func(ctx context.Context, m *Menu) error {
			if m.Input().Symbol == "✅" {
				return m.Next(ctx)
			}
			return nil
		})
	terminal := NewPage(pages.NewContent("done", ""))
	require.NoError(t, m.AddPages(pick, terminal))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	// Wait for both page buttons to be placed on the output message.
	var msgID string
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		if !ok || len(rec.Reactions) != 2 {
			return false
		}
		msgID = rec.Msg.ID
		return true
	}, 2*time.Second, 5*time.Millisecond)

	// A press outside the page's button set is ignored.
	dispatch(t, mem, transport.Event{
		Kind:    transport.ReactionAdded,
		UserID:  inv.UserID,
		Message: transport.Message{ID: msgID, ChannelID: inv.ChannelID},
		Symbol:  "🤷",
	})
	dispatch(t, mem, transport.Event{
		Kind:    transport.ReactionAdded,
		UserID:  inv.UserID,
		Message: transport.Message{ID: msgID, ChannelID: inv.ChannelID},
		Symbol:  "✅",
	})

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.Equal(t, 1, m.CurrentPage().Index())
	assert.Equal(t, "✅", m.Input().Symbol)
	assert.Equal(t, 0, reg.Len())
}

func TestPaginatedNavigationAndStop(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	m := NewPaginated(mem, reg, inv, testOptions())

	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("one", "")),
		NewPage(pages.NewContent("two", "")),
		NewPage(pages.NewContent("three", "")),
	))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	// Without SkipButtons only the previous/stop/next trio is drawn.
	press := func(symbol string) { pressNav(t, mem, inv, symbol, 3) }

	press("▶️")
	press("▶️")
	press("◀️")
	press("⏹️")

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.Equal(t, 1, m.CurrentPage().Index())
	assert.Equal(t, 0, reg.Len())
	assert.True(t, m.Output().Zero(), "stop deletes the output message")
}

func TestPaginatedSkipButtonsJumpToLast(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	opts := testOptions()
	opts.SkipButtons = true
	m := NewPaginated(mem, reg, inv, opts)

	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("one", "")),
		NewPage(pages.NewContent("two", "")),
		NewPage(pages.NewContent("three", "")),
	))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	press := func(symbol string) { pressNav(t, mem, inv, symbol, 5) }

	press("⏭️")
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		return ok && rec.Content.Title == "three"
	}, 2*time.Second, 5*time.Millisecond)

	press("⏮️")
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		return ok && rec.Content.Title == "one"
	}, 2*time.Second, 5*time.Millisecond)

	press("⏹️")
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 0, m.CurrentPage().Index())
}

func TestGuildRenderEditsInPlace(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	mem.MarkGuild(-500)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := transport.Invocation{UserID: 1, ChannelID: -500, GuildID: -500}
	ctx := context.Background()

	m := NewText(mem, reg, inv, testOptions())
	noop := func(ctx context.Context, m *Menu) error { return nil }
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("a", "")).OnNext(noop),
		NewPage(pages.NewContent("b", "")).OnNext(noop),
	))

	require.NoError(t, m.render(ctx))
	first := m.Output()
	require.NoError(t, m.Next(ctx))

	assert.Equal(t, first.ID, m.Output().ID, "guild render edits the same message")
	rec, ok := mem.Message(first.ID)
	require.True(t, ok)
	assert.Equal(t, 1, rec.Edits)
	assert.Equal(t, "b", rec.Content.Title)
}

func TestDMRenderReplacesMessage(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	ctx := context.Background()

	m := NewText(mem, reg, testInvocation(), testOptions())
	noop := func(ctx context.Context, m *Menu) error { return nil }
	require.NoError(t, m.AddPages(
		NewPage(pages.NewContent("a", "")).OnNext(noop),
		NewPage(pages.NewContent("b", "")).OnNext(noop),
	))

	require.NoError(t, m.render(ctx))
	first := m.Output()
	require.NoError(t, m.Next(ctx))

	assert.NotEqual(t, first.ID, m.Output().ID, "DM render deletes and resends")
	assert.Contains(t, mem.Deleted(), first.ID)
}

func TestReplyAsDefaultRepliesToInvocation(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	inv.Message = transport.Message{ID: "cmd", ChannelID: inv.ChannelID}
	opts := testOptions()
	opts.ReplyAsDefault = true

	m := NewText(mem, reg, inv, opts)
	require.NoError(t, m.AddPages(NewPage(pages.NewContent("a", "")).
		OnNext(func(ctx context.Context, m *Menu) error { return nil })))

	require.NoError(t, m.render(context.Background()))
	rec, ok := mem.Message(m.Output().ID)
	require.True(t, ok)
	assert.Equal(t, "cmd", rec.ReplyTo)
}

func TestTemplateFillsUnsetAttributes(t *testing.T) {
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	opts := testOptions()
	opts.Template = &pages.Template{Footer: "powered by menus", Color: "blue"}

	m := NewText(mem, reg, testInvocation(), opts)
	require.NoError(t, m.AddPages(NewPage(&pages.Content{Title: "a", Footer: "mine"}).
		OnNext(func(ctx context.Context, m *Menu) error { return nil })))

	require.NoError(t, m.render(context.Background()))
	rec, ok := mem.Message(m.Output().ID)
	require.True(t, ok)
	assert.Equal(t, "mine", rec.Content.Footer, "page value wins over template")
	assert.Equal(t, "blue", rec.Content.Color)
}

func TestResponseVocabularies(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	m.input = transport.Event{Text: "  YES "}
	assert.True(t, m.Confirmed())
	assert.False(t, m.Denied())

	m.input = transport.Event{Text: "No"}
	assert.True(t, m.Denied())

	m.input = transport.Event{Text: "maybe"}
	assert.False(t, m.Confirmed())
	assert.False(t, m.Denied())
	assert.True(t, m.ResponseIn([]string{"perhaps", "MAYBE"}))
}

func TestDataBag(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	_, ok := m.Data("name")
	assert.False(t, ok)

	m.SetData("name", "ava")
	v, ok := m.Data("name")
	require.True(t, ok)
	assert.Equal(t, "ava", v)
}

func TestMatchButtonCustomEmojiForm(t *testing.T) {
	m := NewText(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	sym, ok := m.matchButton("party:12345", []string{"party", "other"})
	require.True(t, ok)
	assert.Equal(t, "party", sym)

	sym, ok = m.matchButton("✅", []string{"✅"})
	require.True(t, ok)
	assert.Equal(t, "✅", sym)

	_, ok = m.matchButton("❌", []string{"✅"})
	assert.False(t, ok)
}
