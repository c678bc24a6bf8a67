package session

import "sync"

// Policy controls occupancy caps and the freeze/restore behaviour.
// Zero caps mean unlimited.
type Policy struct {
	PerUser      int
	PerChannel   int
	PerGuild     int
	AllowRestore bool
	HistoryLimit int
}

// DefaultPolicy mirrors the documented configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		PerUser:      10,
		PerChannel:   1,
		PerGuild:     3,
		HistoryLimit: 10,
	}
}

// Registry is the process-wide authority on active menu sessions. It is an
// explicit object rather than package state so ownership and lifetime follow
// whatever owns the bot runtime.
type Registry struct {
	mu       sync.Mutex
	policy   Policy
	sessions map[Key]*Session
}

// NewRegistry builds an empty registry with the given policy.
func NewRegistry(policy Policy) *Registry {
	if policy.HistoryLimit <= 0 {
		policy.HistoryLimit = DefaultPolicy().HistoryLimit
	}
	return &Registry{
		policy:   policy,
		sessions: make(map[Key]*Session),
	}
}

// Register claims the slot for key, binding owner (the menu instance) to it.
// The duplicate check and the insert run under a single lock hold.
//
// When the slot holds a frozen session and restores are allowed, that session
// is reactivated with its history intact and returned with restored=true.
// A live session for the same key, or an exceeded occupancy cap, yields a
// *DuplicateError.
func (r *Registry) Register(key Key, guildID int64, owner any) (sess *Session, restored bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[key]; ok {
		if existing.Frozen() && r.policy.AllowRestore {
			existing.Unfreeze(owner)
			return existing, true, nil
		}
		return nil, false, &DuplicateError{Key: key}
	}

	if err := r.checkCapsLocked(key, guildID); err != nil {
		return nil, false, err
	}

	sess = &Session{
		key:     key,
		guildID: guildID,
		reg:     r,
		owner:   owner,
		active:  true,
		limit:   r.policy.HistoryLimit,
	}
	r.sessions[key] = sess
	return sess, false, nil
}

// Lookup returns the session registered under key, or nil. Pure read.
func (r *Registry) Lookup(key Key) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// Remove drops the session for key. Idempotent: removing an absent key is a
// no-op, which guards the double-close race between cancel and timeout paths.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Flush clears every session. Administrative escape hatch only.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[Key]*Session)
}

// Len returns the number of registered sessions, frozen included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) checkCapsLocked(key Key, guildID int64) error {
	var perUser, perChannel, perGuild int
	for k, s := range r.sessions {
		if !s.Active() {
			continue
		}
		if k.UserID == key.UserID {
			perUser++
		}
		if k.ChannelID == key.ChannelID {
			perChannel++
		}
		if guildID != 0 && s.guildID == guildID {
			perGuild++
		}
	}
	if r.policy.PerUser > 0 && perUser >= r.policy.PerUser {
		return &DuplicateError{Key: key, Cap: "user"}
	}
	if r.policy.PerChannel > 0 && perChannel >= r.policy.PerChannel {
		return &DuplicateError{Key: key, Cap: "channel"}
	}
	if guildID != 0 && r.policy.PerGuild > 0 && perGuild >= r.policy.PerGuild {
		return &DuplicateError{Key: key, Cap: "guild"}
	}
	return nil
}
