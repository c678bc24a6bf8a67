package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterClaimsSlot(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	key := Key{UserID: 1, ChannelID: 100}

	sess, restored, err := reg.Register(key, 0, "menu-a")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.True(t, sess.Active())
	assert.Equal(t, "menu-a", sess.Owner())
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	key := Key{UserID: 1, ChannelID: 100}

	_, _, err := reg.Register(key, 0, "menu-a")
	require.NoError(t, err)

	_, _, err = reg.Register(key, 0, "menu-b")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, key, dup.Key)
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterConcurrentSingleWinner(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	key := Key{UserID: 7, ChannelID: 42}

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, _, err := reg.Register(key, 0, n); err == nil {
				wins <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, reg.Len())
}

func TestKillReleasesSlotForReuse(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	key := Key{UserID: 1, ChannelID: 100}

	sess, _, err := reg.Register(key, 0, "menu-a")
	require.NoError(t, err)
	sess.Kill()
	sess.Kill() // idempotent

	assert.Equal(t, 0, reg.Len())
	_, restored, err := reg.Register(key, 0, "menu-b")
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestFreezeAndRestore(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowRestore = true
	reg := NewRegistry(policy)
	key := Key{UserID: 1, ChannelID: 100}

	sess, _, err := reg.Register(key, 0, "menu-a")
	require.NoError(t, err)
	sess.PushHistory(0)
	sess.PushHistory(2)
	sess.KillOrFreeze()

	assert.True(t, sess.Frozen())
	assert.False(t, sess.Active())
	assert.Equal(t, 1, reg.Len())

	restoredSess, restored, err := reg.Register(key, 0, "menu-b")
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Same(t, sess, restoredSess)
	assert.Equal(t, "menu-b", restoredSess.Owner())
	assert.Equal(t, []int{0, 2}, restoredSess.History())
	assert.Equal(t, 2, restoredSess.CurrentIndex())
}

func TestFreezeDisabledByPolicy(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	key := Key{UserID: 1, ChannelID: 100}

	sess, _, err := reg.Register(key, 0, "menu-a")
	require.NoError(t, err)
	sess.KillOrFreeze()

	assert.False(t, sess.Frozen())
	assert.Equal(t, 0, reg.Len())
}

func TestChannelCap(t *testing.T) {
	policy := Policy{PerUser: 10, PerChannel: 1, PerGuild: 3, HistoryLimit: 10}
	reg := NewRegistry(policy)

	_, _, err := reg.Register(Key{UserID: 1, ChannelID: 100}, 0, nil)
	require.NoError(t, err)

	_, _, err = reg.Register(Key{UserID: 2, ChannelID: 100}, 0, nil)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "channel", dup.Cap)
}

func TestGuildCap(t *testing.T) {
	policy := Policy{PerUser: 10, PerChannel: 5, PerGuild: 2, HistoryLimit: 10}
	reg := NewRegistry(policy)

	_, _, err := reg.Register(Key{UserID: 1, ChannelID: 100}, -500, nil)
	require.NoError(t, err)
	_, _, err = reg.Register(Key{UserID: 2, ChannelID: 101}, -500, nil)
	require.NoError(t, err)

	_, _, err = reg.Register(Key{UserID: 3, ChannelID: 102}, -500, nil)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "guild", dup.Cap)

	// A different guild is unaffected.
	_, _, err = reg.Register(Key{UserID: 3, ChannelID: 103}, -600, nil)
	assert.NoError(t, err)
}

func TestUserCap(t *testing.T) {
	policy := Policy{PerUser: 2, PerChannel: 5, PerGuild: 10, HistoryLimit: 10}
	reg := NewRegistry(policy)

	_, _, err := reg.Register(Key{UserID: 1, ChannelID: 100}, 0, nil)
	require.NoError(t, err)
	_, _, err = reg.Register(Key{UserID: 1, ChannelID: 101}, 0, nil)
	require.NoError(t, err)

	_, _, err = reg.Register(Key{UserID: 1, ChannelID: 102}, 0, nil)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "user", dup.Cap)
}

func TestHistoryRingEviction(t *testing.T) {
	policy := DefaultPolicy()
	policy.HistoryLimit = 3
	reg := NewRegistry(policy)

	sess, _, err := reg.Register(Key{UserID: 1, ChannelID: 100}, 0, nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		sess.PushHistory(i)
	}
	assert.Equal(t, []int{3, 4, 5}, sess.History())
	assert.Equal(t, 5, sess.CurrentIndex())
	assert.Equal(t, 4, sess.LastVisited())
}

func TestFlush(t *testing.T) {
	reg := NewRegistry(DefaultPolicy())
	_, _, err := reg.Register(Key{UserID: 1, ChannelID: 100}, 0, nil)
	require.NoError(t, err)
	_, _, err = reg.Register(Key{UserID: 2, ChannelID: 101}, 0, nil)
	require.NoError(t, err)

	reg.Flush()
	assert.Equal(t, 0, reg.Len())
}
