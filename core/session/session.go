// Package session tracks which user occupies which menu slot. The Registry
// is the only shared mutable structure in the library; every mutation runs
// under one lock so the check-then-insert on open can never interleave.
package session

import "sync"

// Key identifies one menu slot: one user in one channel.
type Key struct {
	UserID    int64
	ChannelID int64
}

// Session is the record of one live or frozen menu occupancy.
type Session struct {
	key     Key
	guildID int64
	reg     *Registry

	mu      sync.Mutex
	owner   any
	active  bool
	frozen  bool
	history []int
	limit   int
}

// Key returns the identity the session is registered under.
func (s *Session) Key() Key { return s.key }

// Owner returns the menu instance currently bound to the session.
func (s *Session) Owner() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Active reports whether the session currently occupies its slot.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Frozen reports whether the session is retained for a later restore.
func (s *Session) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// Freeze marks the session inactive while keeping it in the registry.
// It is a no-op when the registry policy disallows restores.
func (s *Session) Freeze() {
	if s.reg != nil && !s.reg.policy.AllowRestore {
		return
	}
	s.mu.Lock()
	s.active = false
	s.frozen = true
	s.mu.Unlock()
}

// Unfreeze reactivates a frozen session, keeping its history intact.
// The new owner replaces the menu instance that froze the session.
func (s *Session) Unfreeze(owner any) {
	s.mu.Lock()
	s.owner = owner
	s.active = true
	s.frozen = false
	s.mu.Unlock()
}

// Kill releases the slot unconditionally. Safe to call more than once.
func (s *Session) Kill() {
	s.mu.Lock()
	s.active = false
	s.frozen = false
	s.mu.Unlock()
	if s.reg != nil {
		s.reg.Remove(s.key)
	}
}

// KillOrFreeze freezes when the restore policy is enabled, kills otherwise.
func (s *Session) KillOrFreeze() {
	if s.reg != nil && s.reg.policy.AllowRestore {
		s.Freeze()
		return
	}
	s.Kill()
}

// PushHistory appends a visited page index, evicting the oldest entry once
// the configured cache limit is exceeded.
func (s *Session) PushHistory(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, index)
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
}

// History returns a copy of the retained navigation history, oldest first.
func (s *Session) History() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.history...)
}

// LastVisited returns the index of the page visited before the current one,
// or 0 when there is no earlier entry.
func (s *Session) LastVisited() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > 1 {
		return s.history[len(s.history)-2]
	}
	return 0
}

// CurrentIndex returns the most recent history entry, or 0 when empty.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > 0 {
		return s.history[len(s.history)-1]
	}
	return 0
}
