package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/menus/core/logger"
	"log/slog"
)

// PollResult is one archived choice tally of a closed poll.
type PollResult struct {
	ID       int64     `db:"id"`
	ChatID   int64     `db:"chat_id"`
	OwnerID  int64     `db:"owner_id"`
	Question string    `db:"question"`
	Choice   string    `db:"choice"`
	Votes    int       `db:"votes"`
	ClosedAt time.Time `db:"closed_at"`
}

// PollResultStore persists closed poll tallies for later retrieval.
type PollResultStore struct {
	db *sqlx.DB
}

// NewPollResultStore wraps an open connection pool.
func NewPollResultStore(db *sqlx.DB) *PollResultStore {
	return &PollResultStore{db: db}
}

// Archive writes one row per choice for a closed poll in a single transaction.
func (s *PollResultStore) Archive(ctx context.Context, chatID, ownerID int64, question string, results map[string]int) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	closedAt := time.Now().UTC()
	const query = `
		INSERT INTO poll_results (chat_id, owner_id, question, choice, votes, closed_at)
		VALUES (:chat_id, :owner_id, :question, :choice, :votes, :closed_at)`
	for choice, votes := range results {
		row := PollResult{
			ChatID:   chatID,
			OwnerID:  ownerID,
			Question: question,
			Choice:   choice,
			Votes:    votes,
			ClosedAt: closedAt,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("storage: insert poll result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}

	logger.DB.Debug("poll results archived",
		slog.String("event", "poll_results.archive"),
		slog.Int64("chat_id", chatID),
		slog.Int("count", len(results)),
	)
	return nil
}

// Recent returns the latest archived tallies for a chat, newest first.
func (s *PollResultStore) Recent(ctx context.Context, chatID int64, limit int) ([]PollResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []PollResult
	const query = `
		SELECT id, chat_id, owner_id, question, choice, votes, closed_at
		FROM poll_results
		WHERE chat_id = $1
		ORDER BY closed_at DESC, id DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &out, query, chatID, limit); err != nil {
		return nil, fmt.Errorf("storage: select poll results: %w", err)
	}
	return out, nil
}
