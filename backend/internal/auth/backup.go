package auth

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

const (
	snapshotPrefix = "snapshot_"
	latestMirror   = "latest"
)

// Backup snapshots the SQLite store directory. Ephemeral deployments wipe
// the primary directory between restarts; RestoreLatestIfEmpty puts the
// newest snapshot back before the bootstrap pass runs.
type Backup struct {
	dataDir   string
	backupDir string
	keep      int
	log       *zap.Logger
}

// NewBackup configures snapshots of dataDir into backupDir, retaining at
// most keep timestamped snapshots.
func NewBackup(dataDir, backupDir string, keep int) *Backup {
	return &Backup{
		dataDir:   dataDir,
		backupDir: backupDir,
		keep:      keep,
		log:       logger.Named("backup"),
	}
}

// Snapshot copies the store directory into a new timestamped snapshot,
// prunes snapshots beyond the retention count, and refreshes the
// continuously-overwritten latest mirror.
func (b *Backup) Snapshot() (string, error) {
	b.checkpoint()

	name := snapshotPrefix + time.Now().UTC().Format("20060102T150405")
	dest := filepath.Join(b.backupDir, name)
	if err := copyDir(b.dataDir, dest); err != nil {
		return "", errors.NewStorageBackupFailed(dest, err)
	}

	if err := b.prune(); err != nil {
		b.log.Warn("Snapshot pruning failed", zap.Error(err))
	}

	latest := filepath.Join(b.backupDir, latestMirror)
	if err := os.RemoveAll(latest); err != nil {
		b.log.Warn("Failed to clear latest mirror", zap.Error(err))
	} else if err := copyDir(b.dataDir, latest); err != nil {
		b.log.Warn("Failed to refresh latest mirror", zap.Error(err))
	}

	b.log.Info("Backup snapshot written", zap.String("snapshot", name))
	return dest, nil
}

// checkpoint folds outstanding WAL sidecars into their databases so the
// file-level copy captures every commit, even if the store ever starts
// holding connections open between operations.
func (b *Backup) checkpoint() {
	globalPaths, _ := filepath.Glob(filepath.Join(b.dataDir, "*.db"))
	guildPaths, _ := filepath.Glob(filepath.Join(b.dataDir, "guilds", "*.db"))
	for _, path := range append(globalPaths, guildPaths...) {
		if _, err := os.Stat(path + "-wal"); err != nil {
			continue
		}
		db, err := openDB(path)
		if err != nil {
			b.log.Warn("Checkpoint open failed", zap.String("path", path), zap.Error(err))
			continue
		}
		_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		db.Close()
		if err != nil {
			b.log.Warn("WAL checkpoint failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (b *Backup) prune() error {
	names, err := b.snapshots()
	if err != nil {
		return err
	}
	if len(names) <= b.keep {
		return nil
	}
	// Oldest first; snapshot names sort chronologically
	for _, name := range names[:len(names)-b.keep] {
		if err := os.RemoveAll(filepath.Join(b.backupDir, name)); err != nil {
			return err
		}
		b.log.Debug("Pruned old snapshot", zap.String("snapshot", name))
	}
	return nil
}

func (b *Backup) snapshots() ([]string, error) {
	entries, err := os.ReadDir(b.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RestoreLatestIfEmpty restores the newest snapshot when the primary store
// directory holds no databases. Returns true when a restore happened.
func (b *Backup) RestoreLatestIfEmpty() (bool, error) {
	if !storeDirEmpty(b.dataDir) {
		return false, nil
	}
	names, err := b.snapshots()
	if err != nil {
		return false, errors.NewStorageBackupFailed(b.backupDir, err)
	}
	if len(names) == 0 {
		return false, nil
	}
	newest := names[len(names)-1]
	src := filepath.Join(b.backupDir, newest)
	if err := copyDir(src, b.dataDir); err != nil {
		return false, errors.NewStorageBackupFailed(src, err)
	}
	b.log.Info("Restored store from backup snapshot", zap.String("snapshot", newest))
	return true, nil
}

// Run snapshots on a timer until the context is cancelled.
func (b *Backup) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Snapshot(); err != nil {
				b.log.Error("Scheduled backup failed", zap.Error(err))
			}
		}
	}
}

// storeDirEmpty reports whether the directory holds no database files.
func storeDirEmpty(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "global.db")); err == nil {
		return false
	}
	entries, err := os.ReadDir(filepath.Join(dir, "guilds"))
	if err != nil {
		return true
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".db") {
			return false
		}
	}
	return true
}

func copyDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		// Skip WAL sidecars; the main database file is self-contained
		// enough for a cold restore
		if strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm") {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
