package menu

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/menus/core/logger"
	"github.com/m3rciful/menus/core/transport"
)

// pollStrategy turns the voting page's buttons into choices and aggregates
// presses from every user until the poll duration elapses. When the timer
// fires, double-voters are struck from every choice and the voting page's
// OnNext callback renders the outcome.
type pollStrategy struct{}

func (m *Menu) validatePoll() error {
	if len(m.pages) != 2 {
		return &PagesError{Msg: fmt.Sprintf("a poll must have exactly two pages, found %d", len(m.pages))}
	}
	voting := m.pages[0]
	if voting.onCancel != nil || voting.onFail != nil || voting.onTimeout != nil {
		return &EventError{Msg: "polls can not capture cancel, fail or timeout events on the voting page"}
	}
	if len(voting.buttons) < 2 {
		return &ButtonsError{Msg: fmt.Sprintf("a poll requires at least two choice buttons, found %d", len(voting.buttons))}
	}
	return nil
}

func (pollStrategy) run(ctx context.Context, m *Menu) error {
	voting := m.pages[0]
	m.initVotes(voting.buttons)

	if err := m.placeButtons(ctx, voting.buttons); err != nil {
		return err
	}
	m.drawnButtons = m.cursor

	duration := m.opts.Timeout
	if duration > m.opts.SessionTimeout {
		duration = m.opts.SessionTimeout
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go m.watchVotes(watchCtx, &wg, transport.ReactionAdded)
	go m.watchVotes(watchCtx, &wg, transport.ReactionRemoved)

	select {
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return ctx.Err()
	case <-time.After(duration):
	}
	cancel()
	wg.Wait()

	removed := m.removeDoubleVoters()
	if removed > 0 {
		logger.Debug(ctx, "menu", "poll.double_voters_removed",
			slog.Int64("chat_id", m.inv.ChannelID),
			slog.Int("count", removed),
		)
	}

	if fn := voting.onNext; fn != nil {
		if err := fn(ctx, m); err != nil {
			return err
		}
	}
	m.closeSession()
	return m.clearLeftoverButtons(ctx)
}

// watchVotes runs one WaitFor loop for the given event kind, folding each
// accepted event into the tallies until the poll context ends.
func (m *Menu) watchVotes(ctx context.Context, wg *sync.WaitGroup, kind transport.EventKind) {
	defer wg.Done()
	pred := func(ev transport.Event) bool {
		return ev.UserID != m.client.BotID() && ev.Message.ID == m.output.ID
	}
	for {
		ev, err := m.client.WaitFor(ctx, kind, pred, m.opts.SessionTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		sym, matched := m.matchButton(ev.Symbol, m.pages[0].buttons)
		if !matched {
			continue
		}
		if kind == transport.ReactionAdded {
			m.voteAdd(sym, ev.UserID)
		} else {
			m.voteRemove(sym, ev.UserID)
		}
	}
}

func (m *Menu) initVotes(choices []string) {
	m.votesMu.Lock()
	defer m.votesMu.Unlock()
	m.votes = make(map[string]map[int64]struct{}, len(choices))
	for _, c := range choices {
		m.votes[c] = make(map[int64]struct{})
	}
}

func (m *Menu) voteAdd(choice string, userID int64) {
	m.votesMu.Lock()
	defer m.votesMu.Unlock()
	if set, ok := m.votes[choice]; ok {
		set[userID] = struct{}{}
	}
}

func (m *Menu) voteRemove(choice string, userID int64) {
	m.votesMu.Lock()
	defer m.votesMu.Unlock()
	if set, ok := m.votes[choice]; ok {
		delete(set, userID)
	}
}

// removeDoubleVoters strikes every voter present in more than one choice set
// from all sets, including the first choice they voted for. Returns how many
// voters were removed.
func (m *Menu) removeDoubleVoters() int {
	m.votesMu.Lock()
	defer m.votesMu.Unlock()

	seen := make(map[int64]int)
	for _, set := range m.votes {
		for id := range set {
			seen[id]++
		}
	}
	removed := 0
	for id, n := range seen {
		if n < 2 {
			continue
		}
		removed++
		for _, set := range m.votes {
			delete(set, id)
		}
	}
	return removed
}

// Results returns the vote count per choice. Valid after the poll closed,
// or mid-poll for a live tally.
func (m *Menu) Results() map[string]int {
	m.votesMu.Lock()
	defer m.votesMu.Unlock()
	out := make(map[string]int, len(m.votes))
	for choice, set := range m.votes {
		out[choice] = len(set)
	}
	return out
}

// AddResultsFields appends one field per choice to the results page, in the
// voting page's button order.
func (m *Menu) AddResultsFields() {
	results := m.Results()
	content := m.pages[1].content
	for _, choice := range m.pages[0].buttons {
		content.AddField(choice, fmt.Sprintf("%d vote(s)", results[choice]))
	}
}

// GenerateResultsPage fills the results page with the tallies and a winner
// line. A tie for the top count, or no votes at all, is a draw.
func (m *Menu) GenerateResultsPage() {
	m.AddResultsFields()

	results := m.Results()
	choices := make([]string, 0, len(results))
	for c := range results {
		choices = append(choices, c)
	}
	sort.Strings(choices)

	best, winners := 0, 0
	winner := ""
	for _, c := range choices {
		n := results[c]
		switch {
		case n > best:
			best, winners, winner = n, 1, c
		case n == best && n > 0:
			winners++
		}
	}

	content := m.pages[1].content
	if best == 0 || winners != 1 {
		content.Description += "\n\nIt's a draw!"
		return
	}
	content.Description += fmt.Sprintf("\n\n%s wins!", winner)
}
