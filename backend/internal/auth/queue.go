package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// SaveKind identifies what a queued operation persists.
type SaveKind string

const (
	SaveGlobal SaveKind = "global"
	SaveGuild  SaveKind = "guild"
)

type opKey struct {
	kind    SaveKind
	guildID string
}

// StateSource provides the current in-memory state at write time. The
// worker never persists a snapshot captured at enqueue time.
type StateSource interface {
	SnapshotGlobal() *GlobalRecord
	SnapshotGuild(guildID string) *GuildRecord
}

// Queue coalesces save operations and drains them on a single background
// worker so storage I/O never blocks command handling. Enqueuing a key
// already pending is a no-op: a burst of N mutations to one guild inside
// one drain cycle produces exactly one write.
type Queue struct {
	mu      sync.Mutex
	pending map[opKey]struct{}
	order   []opKey
	deleted map[string]struct{}

	wake   chan struct{}
	store  Store
	source StateSource
	log    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates a queue over the given backend. Call Start to launch
// the worker.
func NewQueue(store Store, source StateSource) *Queue {
	return &Queue{
		pending: map[opKey]struct{}{},
		deleted: map[string]struct{}{},
		wake:    make(chan struct{}, 1),
		store:   store,
		source:  source,
		log:     logger.Named("savequeue"),
		done:    make(chan struct{}),
	}
}

// Start launches the background worker.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.run(ctx)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			// Final pass so a clean shutdown keeps recent mutations
			q.Flush(context.Background())
			return
		case <-q.wake:
			q.Flush(ctx)
		}
	}
}

// EnqueueGlobal schedules a save of global state.
func (q *Queue) EnqueueGlobal() {
	q.enqueue(opKey{kind: SaveGlobal})
}

// EnqueueGuild schedules a save of one guild's state.
func (q *Queue) EnqueueGuild(guildID string) {
	q.enqueue(opKey{kind: SaveGuild, guildID: guildID})
}

// EnqueueDelete schedules backend deletion of a guild's record and cancels
// any pending save for it.
func (q *Queue) EnqueueDelete(guildID string) {
	q.mu.Lock()
	key := opKey{kind: SaveGuild, guildID: guildID}
	if _, ok := q.pending[key]; ok {
		delete(q.pending, key)
		for i, k := range q.order {
			if k == key {
				q.order = append(q.order[:i], q.order[i+1:]...)
				break
			}
		}
	}
	q.deleted[guildID] = struct{}{}
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) enqueue(key opKey) {
	q.mu.Lock()
	if _, ok := q.pending[key]; ok {
		q.mu.Unlock()
		return
	}
	q.pending[key] = struct{}{}
	q.order = append(q.order, key)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PendingCount returns the number of distinct queued operations.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.deleted)
}

// Flush drains every pending operation once, re-reading current state for
// each write. A failed write is logged and dropped; in-memory state stays
// authoritative and the next save for the same key rewrites everything.
// Returns the number of operations executed.
func (q *Queue) Flush(ctx context.Context) int {
	q.mu.Lock()
	keys := q.order
	q.order = nil
	q.pending = map[opKey]struct{}{}
	deleted := q.deleted
	q.deleted = map[string]struct{}{}
	q.mu.Unlock()

	n := 0
	for guildID := range deleted {
		if err := q.store.DeleteGuild(ctx, guildID); err != nil {
			q.log.Error("Failed to delete guild record",
				zap.String("guild_id", guildID),
				zap.Error(errors.NewStorageWriteFailed("guild:"+guildID, err)),
			)
			continue
		}
		n++
	}
	for _, key := range keys {
		switch key.kind {
		case SaveGlobal:
			if err := q.store.SaveGlobal(ctx, q.source.SnapshotGlobal()); err != nil {
				q.log.Error("Failed to save global record",
					zap.Error(errors.NewStorageWriteFailed("global", err)),
				)
				continue
			}
		case SaveGuild:
			snap := q.source.SnapshotGuild(key.guildID)
			if snap == nil {
				// Deleted between enqueue and drain
				continue
			}
			if err := q.store.SaveGuild(ctx, key.guildID, snap); err != nil {
				q.log.Error("Failed to save guild record",
					zap.String("guild_id", key.guildID),
					zap.Error(errors.NewStorageWriteFailed("guild:"+key.guildID, err)),
				)
				continue
			}
		}
		n++
	}
	return n
}

// Drain stops the worker and waits for its final pass, bounded by timeout.
// Responsiveness wins over durability of a single in-flight write.
func (q *Queue) Drain(timeout time.Duration) bool {
	if q.cancel == nil {
		return true
	}
	q.cancel()
	select {
	case <-q.done:
		return true
	case <-time.After(timeout):
		q.log.Warn("Save queue drain timed out", zap.Duration("timeout", timeout))
		return false
	}
}
