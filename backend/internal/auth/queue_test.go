package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	mu          sync.Mutex
	globalSaves int
	guildSaves  map[string]int
	deleted     []string
}

func newCountingStore() *countingStore {
	return &countingStore{guildSaves: map[string]int{}}
}

func (s *countingStore) LoadGlobal(ctx context.Context) (*GlobalRecord, error) {
	return &GlobalRecord{}, nil
}

func (s *countingStore) SaveGlobal(ctx context.Context, rec *GlobalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalSaves++
	return nil
}

func (s *countingStore) ListGuilds(ctx context.Context) ([]string, error) { return nil, nil }

func (s *countingStore) LoadGuild(ctx context.Context, guildID string) (*GuildRecord, error) {
	return NewGuildRecord(), nil
}

func (s *countingStore) SaveGuild(ctx context.Context, guildID string, rec *GuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guildSaves[guildID]++
	return nil
}

func (s *countingStore) DeleteGuild(ctx context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, guildID)
	return nil
}

func (s *countingStore) Close() error { return nil }

func TestQueueCoalescesSameKey(t *testing.T) {
	store := newCountingStore()
	m := NewManager(ownerID)
	m.SetVerified("42", "user-1", true)
	q := NewQueue(store, m)

	q.EnqueueGuild("42")
	q.EnqueueGuild("42")
	q.EnqueueGuild("42")
	assert.Equal(t, 1, q.PendingCount())

	n := q.Flush(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.guildSaves["42"])
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueueDistinctKeysAllWritten(t *testing.T) {
	store := newCountingStore()
	m := NewManager(ownerID)
	m.SetVerified("1", "a", true)
	m.SetVerified("2", "b", true)
	q := NewQueue(store, m)

	q.EnqueueGlobal()
	q.EnqueueGuild("1")
	q.EnqueueGuild("2")
	q.EnqueueGlobal()

	n := q.Flush(context.Background())
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, store.globalSaves)
	assert.Equal(t, 1, store.guildSaves["1"])
	assert.Equal(t, 1, store.guildSaves["2"])
}

func TestQueueDeleteCancelsPendingSave(t *testing.T) {
	store := newCountingStore()
	m := NewManager(ownerID)
	m.SetVerified("42", "user-1", true)
	q := NewQueue(store, m)

	q.EnqueueGuild("42")
	q.EnqueueDelete("42")
	m.RemoveGuild("42")

	q.Flush(context.Background())
	assert.Zero(t, store.guildSaves["42"])
	assert.Equal(t, []string{"42"}, store.deleted)
}

func TestQueueReReadsStateAtWriteTime(t *testing.T) {
	store := newCountingStore()
	m := NewManager(ownerID)
	q := NewQueue(store, m)
	m.SetQueue(q)

	// The record mutates after enqueue; the worker must see the final state
	m.SetVerified("42", "user-1", true)
	m.SetVerified("42", "user-2", true)

	snap := m.SnapshotGuild("42")
	require.NotNil(t, snap)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, snap.Verified)

	n := q.Flush(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.guildSaves["42"])
}

func TestQueueWorkerDrainsOnShutdown(t *testing.T) {
	store := newCountingStore()
	m := NewManager(ownerID)
	q := NewQueue(store, m)
	m.SetQueue(q)
	q.Start()

	m.SetVerified("7", "user-1", true)

	ok := q.Drain(2 * time.Second)
	assert.True(t, ok)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.guildSaves["7"])
}
