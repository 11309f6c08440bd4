package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populateStore(t *testing.T, dir string) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.SaveGlobal(ctx, &GlobalRecord{Admins: []string{"admin-1"}}))
	rec := NewGuildRecord()
	rec.Verified = []string{"u1"}
	require.NoError(t, store.SaveGuild(ctx, "42", rec))
	return store
}

func TestSnapshotAndLatestMirror(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	b := NewBackup(dataDir, backupDir, 48)
	dest, err := b.Snapshot()
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "global.db"))
	assert.FileExists(t, filepath.Join(dest, "guilds", "42.db"))
	assert.FileExists(t, filepath.Join(backupDir, latestMirror, "global.db"))
}

func TestSnapshotCheckpointsWALSidecars(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	// A leftover sidecar is folded into the database, not copied
	walPath := filepath.Join(dataDir, "global.db-wal")
	require.NoError(t, os.WriteFile(walPath, []byte{0x00}, 0o644))

	b := NewBackup(dataDir, backupDir, 48)
	dest, err := b.Snapshot()
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "global.db"))
	assert.NoFileExists(t, filepath.Join(dest, "global.db-wal"))
}

func TestSnapshotRetentionPruning(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	b := NewBackup(dataDir, backupDir, 2)
	// Manufacture old snapshots; names sort chronologically
	for _, name := range []string{"snapshot_20200101T000000", "snapshot_20200102T000000"} {
		require.NoError(t, os.MkdirAll(filepath.Join(backupDir, name), 0o755))
	}

	_, err := b.Snapshot()
	require.NoError(t, err)

	names, err := b.snapshots()
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.NotContains(t, names, "snapshot_20200101T000000")
}

func TestRestoreLatestIntoEmptyStore(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	b := NewBackup(dataDir, backupDir, 48)
	_, err := b.Snapshot()
	require.NoError(t, err)

	// Simulate an ephemeral deployment wiping the primary directory
	freshDir := t.TempDir()
	fresh := NewBackup(freshDir, backupDir, 48)
	restored, err := fresh.RestoreLatestIfEmpty()
	require.NoError(t, err)
	assert.True(t, restored)

	store, err := NewSQLiteStore(freshDir)
	require.NoError(t, err)
	rec, err := store.LoadGuild(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rec.Verified)

	global, err := store.LoadGlobal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1"}, global.Admins)
}

func TestRestoreSkipsPopulatedStore(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	b := NewBackup(dataDir, backupDir, 48)
	_, err := b.Snapshot()
	require.NoError(t, err)

	restored, err := b.RestoreLatestIfEmpty()
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestRestoreWithNoSnapshotsIsNoOp(t *testing.T) {
	b := NewBackup(t.TempDir(), t.TempDir(), 48)
	restored, err := b.RestoreLatestIfEmpty()
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestScheduledBackupStopsOnCancel(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()
	populateStore(t, dataDir)

	b := NewBackup(dataDir, backupDir, 48)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backup loop did not stop")
	}

	names, err := b.snapshots()
	require.NoError(t, err)
	assert.NotEmpty(t, names)
}
