package menu

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/menus/core/pages"
	"github.com/m3rciful/menus/core/session"
	"github.com/m3rciful/menus/core/transport"
)

func newPollFixture(t *testing.T, opts Options) (*Menu, *transport.Memory) {
	t.Helper()
	mem := transport.NewMemory(testBotID)
	m := NewPoll(mem, session.NewRegistry(session.DefaultPolicy()), testInvocation(), opts)

	voting := NewPage(pages.NewContent("Cats or dogs?", "Vote below.")).
		SetButtons("🐱", "🐶")
	results := NewPage(pages.NewContent("Results", "The people have spoken."))
	require.NoError(t, m.AddPages(voting, results))
	return m, mem
}

func TestPollRequiresExactlyTwoPages(t *testing.T) {
	m := NewPoll(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	err := m.AddPages(NewPage(pages.NewContent("only", "")))
	var perr *PagesError
	require.ErrorAs(t, err, &perr)

	err = m.AddPages(
		NewPage(pages.NewContent("a", "")),
		NewPage(pages.NewContent("b", "")),
		NewPage(pages.NewContent("c", "")),
	)
	require.ErrorAs(t, err, &perr)
}

func TestPollRejectsVotingPageEventCallbacks(t *testing.T) {
	m := NewPoll(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	voting := NewPage(pages.NewContent("vote", "")).
		SetButtons("🐱", "🐶").
		OnCancel(func(ctx context.Context, m *Menu) error { return nil })
	require.NoError(t, m.AddPages(voting, NewPage(pages.NewContent("results", ""))))

	err := m.Open(context.Background())
	var eerr *EventError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "EVENT_INVALID", eerr.Code())
}

func TestPollRequiresTwoChoiceButtons(t *testing.T) {
	m := NewPoll(transport.NewMemory(testBotID), session.NewRegistry(session.DefaultPolicy()), testInvocation(), testOptions())

	voting := NewPage(pages.NewContent("vote", "")).SetButtons("🐱")
	require.NoError(t, m.AddPages(voting, NewPage(pages.NewContent("results", ""))))

	err := m.Open(context.Background())
	var berr *ButtonsError
	require.ErrorAs(t, err, &berr)
}

func TestPollDoubleVotersStruckFromAllChoices(t *testing.T) {
	m, _ := newPollFixture(t, testOptions())
	m.initVotes([]string{"🐱", "🐶"})

	m.voteAdd("🐱", 1)
	m.voteAdd("🐱", 2)
	m.voteAdd("🐶", 2)
	m.voteAdd("🐶", 3)

	removed := m.removeDoubleVoters()
	assert.Equal(t, 1, removed)
	assert.Equal(t, map[string]int{"🐱": 1, "🐶": 1}, m.Results())
}

func TestPollVoteRemoveRetracts(t *testing.T) {
	m, _ := newPollFixture(t, testOptions())
	m.initVotes([]string{"🐱", "🐶"})

	m.voteAdd("🐱", 1)
	m.voteAdd("🐱", 1) // idempotent
	m.voteRemove("🐱", 1)
	m.voteRemove("🐶", 7) // never voted

	assert.Equal(t, map[string]int{"🐱": 0, "🐶": 0}, m.Results())
}

func TestGenerateResultsPageWinner(t *testing.T) {
	m, _ := newPollFixture(t, testOptions())
	m.initVotes([]string{"🐱", "🐶"})
	m.voteAdd("🐱", 1)
	m.voteAdd("🐱", 2)
	m.voteAdd("🐶", 3)

	m.GenerateResultsPage()

	content := m.Pages()[1].Content()
	require.Len(t, content.Fields, 2)
	assert.Equal(t, "🐱", content.Fields[0].Name)
	assert.Equal(t, "2 vote(s)", content.Fields[0].Value)
	assert.Equal(t, "🐶", content.Fields[1].Name)
	assert.Equal(t, "1 vote(s)", content.Fields[1].Value)
	assert.True(t, strings.HasSuffix(content.Description, "🐱 wins!"))
}

func TestGenerateResultsPageTieIsDraw(t *testing.T) {
	m, _ := newPollFixture(t, testOptions())
	m.initVotes([]string{"🐱", "🐶"})
	m.voteAdd("🐱", 1)
	m.voteAdd("🐶", 2)

	m.GenerateResultsPage()
	assert.True(t, strings.HasSuffix(m.Pages()[1].Content().Description, "It's a draw!"))
}

func TestGenerateResultsPageNoVotesIsDraw(t *testing.T) {
	m, _ := newPollFixture(t, testOptions())
	m.initVotes([]string{"🐱", "🐶"})

	m.GenerateResultsPage()
	assert.True(t, strings.HasSuffix(m.Pages()[1].Content().Description, "It's a draw!"))
}

func TestPollRunAggregatesAndCloses(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 500 * time.Millisecond
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	inv := testInvocation()
	m := NewPoll(mem, reg, inv, opts)

	voting := NewPage(pages.NewContent("Cats or dogs?", "Vote below.")).
		SetButtons("🐱", "🐶").
		OnNext(func(ctx context.Context, m *Menu) error {
			m.GenerateResultsPage()
			return m.Next(ctx)
		})
	results := NewPage(pages.NewContent("Results", "Final tally."))
	require.NoError(t, m.AddPages(voting, results))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	var msgID string
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		if !ok || len(rec.Reactions) != 2 {
			return false
		}
		msgID = rec.Msg.ID
		return true
	}, 2*time.Second, 5*time.Millisecond)

	vote := func(kind transport.EventKind, userID int64, symbol string) {
		dispatch(t, mem, transport.Event{
			Kind:    kind,
			UserID:  userID,
			Message: transport.Message{ID: msgID, ChannelID: inv.ChannelID},
			Symbol:  symbol,
		})
	}

	vote(transport.ReactionAdded, 10, "🐱")
	vote(transport.ReactionAdded, 11, "🐱")
	// Voting on both choices voids user 11 entirely.
	vote(transport.ReactionAdded, 11, "🐶")
	vote(transport.ReactionAdded, 12, "🐶")
	vote(transport.ReactionRemoved, 12, "🐶")

	require.NoError(t, waitDone(t, done))
	assert.False(t, m.Active())
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, map[string]int{"🐱": 1, "🐶": 0}, m.Results())
	assert.Equal(t, 1, m.CurrentPage().Index())

	rec, ok := mem.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Results", rec.Content.Title)
	assert.True(t, strings.HasSuffix(rec.Content.Description, "🐱 wins!"))
}

func TestPollIgnoresBotAndForeignMessages(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 150 * time.Millisecond
	mem := transport.NewMemory(testBotID)
	reg := session.NewRegistry(session.DefaultPolicy())
	m := NewPoll(mem, reg, testInvocation(), opts)

	voting := NewPage(pages.NewContent("vote", "")).SetButtons("🐱", "🐶")
	require.NoError(t, m.AddPages(voting, NewPage(pages.NewContent("results", ""))))

	done := make(chan error, 1)
	go func() { done <- m.Open(context.Background()) }()

	var msgID string
	require.Eventually(t, func() bool {
		rec, ok := mem.LastMessage()
		if !ok || len(rec.Reactions) != 2 {
			return false
		}
		msgID = rec.Msg.ID
		return true
	}, 2*time.Second, 5*time.Millisecond)

	// The bot's own placement reaction and presses on other messages never
	// reach the tallies: the watch predicates reject them outright.
	assert.False(t, mem.Dispatch(transport.Event{
		Kind:    transport.ReactionAdded,
		UserID:  testBotID,
		Message: transport.Message{ID: msgID, ChannelID: 100},
		Symbol:  "🐱",
	}))
	assert.False(t, mem.Dispatch(transport.Event{
		Kind:    transport.ReactionAdded,
		UserID:  5,
		Message: transport.Message{ID: "elsewhere", ChannelID: 100},
		Symbol:  "🐱",
	}))

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, map[string]int{"🐱": 0, "🐶": 0}, m.Results())
}
