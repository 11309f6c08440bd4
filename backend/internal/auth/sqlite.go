package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// guildSchemaVersion is the current per-guild schema. Version 0 databases
// carry the legacy single-role reaction_role table and are migrated on
// first open.
const guildSchemaVersion = 1

const globalSchema = `
CREATE TABLE IF NOT EXISTS admins (user_id TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS moderators (user_id TEXT PRIMARY KEY);
`

const guildSchema = `
CREATE TABLE IF NOT EXISTS verified_users (user_id TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS blacklisted_users (user_id TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS whitelisted_users (user_id TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS verify_message (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	message_id TEXT NOT NULL,
	channel_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS verify_role_options (
	emoji TEXT PRIMARY KEY,
	role_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS command_overrides (
	command_name TEXT PRIMARY KEY,
	disabled INTEGER NOT NULL DEFAULT 0,
	allowed_roles TEXT NOT NULL DEFAULT '[]',
	allowed_users TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS autokick_config (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	enabled INTEGER NOT NULL DEFAULT 0,
	min_age_days INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps one database file per guild under <dir>/guilds plus a
// shared global.db, so writes for unrelated guilds never contend.
type SQLiteStore struct {
	dir string
	log *zap.Logger
}

// NewSQLiteStore creates the store directory layout if needed.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "guilds"), 0o755); err != nil {
		return nil, errors.NewStorageOpenFailed(dir, err)
	}
	return &SQLiteStore{dir: dir, log: logger.Named("sqlite")}, nil
}

// Dir returns the store's root directory (used by the backup pass).
func (s *SQLiteStore) Dir() string {
	return s.dir
}

func (s *SQLiteStore) globalPath() string {
	return filepath.Join(s.dir, "global.db")
}

func (s *SQLiteStore) guildPath(guildID string) string {
	return filepath.Join(s.dir, "guilds", guildID+".db")
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, errors.NewStorageOpenFailed(path, err)
	}
	return db, nil
}

func (s *SQLiteStore) openGlobal(ctx context.Context) (*sql.DB, error) {
	db, err := openDB(s.globalPath())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, globalSchema); err != nil {
		db.Close()
		return nil, errors.NewStorageOpenFailed(s.globalPath(), err)
	}
	return db, nil
}

func (s *SQLiteStore) openGuild(ctx context.Context, guildID string) (*sql.DB, error) {
	path := s.guildPath(guildID)
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, guildSchema); err != nil {
		db.Close()
		return nil, errors.NewStorageOpenFailed(path, err)
	}
	if err := s.migrateGuild(ctx, db, guildID); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrateGuild upgrades a version 0 database: the legacy reaction_role
// table held a single emoji/role pair; it becomes one verify_message row
// plus one verify_role_options row.
func (s *SQLiteStore) migrateGuild(ctx context.Context, db *sql.DB, guildID string) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version >= guildSchemaVersion {
		return nil
	}

	var messageID, channelID, emoji, roleID string
	err := db.QueryRowContext(ctx,
		`SELECT message_id, channel_id, emoji, role_id FROM reaction_role WHERE id = 1`,
	).Scan(&messageID, &channelID, &emoji, &roleID)
	switch {
	case err == sql.ErrNoRows:
		// Nothing to carry forward
	case err != nil:
		if !strings.Contains(err.Error(), "no such table") {
			return err
		}
	default:
		tx, txErr := db.BeginTx(ctx, nil)
		if txErr != nil {
			return txErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO verify_message (id, message_id, channel_id) VALUES (1, ?, ?)`,
			messageID, channelID,
		); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO verify_role_options (emoji, role_id) VALUES (?, ?)`,
			emoji, roleID,
		); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.log.Info("Migrated legacy reaction role config",
			zap.String("guild_id", guildID),
		)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", guildSchemaVersion))
	return err
}

// LoadGlobal reads the admin and moderator lists.
func (s *SQLiteStore) LoadGlobal(ctx context.Context) (*GlobalRecord, error) {
	db, err := s.openGlobal(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rec := &GlobalRecord{Admins: []string{}, Moderators: []string{}}
	if rec.Admins, err = readIDs(ctx, db, "admins"); err != nil {
		return nil, err
	}
	if rec.Moderators, err = readIDs(ctx, db, "moderators"); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveGlobal rewrites the admin and moderator lists in one transaction.
func (s *SQLiteStore) SaveGlobal(ctx context.Context, rec *GlobalRecord) error {
	db, err := s.openGlobal(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := writeIDs(ctx, tx, "admins", rec.Admins); err != nil {
		tx.Rollback()
		return err
	}
	if err := writeIDs(ctx, tx, "moderators", rec.Moderators); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListGuilds enumerates guild ids from the per-guild database files.
func (s *SQLiteStore) ListGuilds(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "guilds"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".db"))
	}
	return ids, nil
}

// LoadGuild reads one guild's full record.
func (s *SQLiteStore) LoadGuild(ctx context.Context, guildID string) (*GuildRecord, error) {
	db, err := s.openGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rec := NewGuildRecord()
	if rec.Verified, err = readIDs(ctx, db, "verified_users"); err != nil {
		return nil, err
	}
	if rec.Blacklisted, err = readIDs(ctx, db, "blacklisted_users"); err != nil {
		return nil, err
	}
	if rec.Whitelisted, err = readIDs(ctx, db, "whitelisted_users"); err != nil {
		return nil, err
	}

	var messageID, channelID string
	err = db.QueryRowContext(ctx,
		`SELECT message_id, channel_id FROM verify_message WHERE id = 1`,
	).Scan(&messageID, &channelID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		cfg := &ReactionRoleConfig{MessageID: messageID, ChannelID: channelID}
		rows, err := db.QueryContext(ctx, `SELECT emoji, role_id FROM verify_role_options ORDER BY emoji`)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var opt RoleOption
			if err := rows.Scan(&opt.Emoji, &opt.RoleID); err != nil {
				rows.Close()
				return nil, err
			}
			cfg.Options = append(cfg.Options, opt)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		rec.ReactionRoles = cfg
	}

	rows, err := db.QueryContext(ctx,
		`SELECT command_name, disabled, allowed_roles, allowed_users FROM command_overrides`,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name, rolesJSON, usersJSON string
		var disabled int
		if err := rows.Scan(&name, &disabled, &rolesJSON, &usersJSON); err != nil {
			rows.Close()
			return nil, err
		}
		ov := &CommandOverride{Disabled: disabled != 0}
		if err := json.Unmarshal([]byte(rolesJSON), &ov.AllowedRoles); err != nil {
			ov.AllowedRoles = []string{}
		}
		if err := json.Unmarshal([]byte(usersJSON), &ov.AllowedUsers); err != nil {
			ov.AllowedUsers = []string{}
		}
		rec.Overrides[name] = ov
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var enabled, minAge int
	err = db.QueryRowContext(ctx,
		`SELECT enabled, min_age_days FROM autokick_config WHERE id = 1`,
	).Scan(&enabled, &minAge)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		rec.AutoKick = AutoKickConfig{Enabled: enabled != 0, MinAgeDays: minAge}
	}

	return rec, nil
}

// SaveGuild rewrites the guild's entire record in one transaction.
func (s *SQLiteStore) SaveGuild(ctx context.Context, guildID string, rec *GuildRecord) error {
	db, err := s.openGuild(ctx, guildID)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		tx.Rollback()
		return err
	}

	if err := writeIDs(ctx, tx, "verified_users", rec.Verified); err != nil {
		return fail(err)
	}
	if err := writeIDs(ctx, tx, "blacklisted_users", rec.Blacklisted); err != nil {
		return fail(err)
	}
	if err := writeIDs(ctx, tx, "whitelisted_users", rec.Whitelisted); err != nil {
		return fail(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM verify_message`); err != nil {
		return fail(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM verify_role_options`); err != nil {
		return fail(err)
	}
	if rr := rec.ReactionRoles; rr != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO verify_message (id, message_id, channel_id) VALUES (1, ?, ?)`,
			rr.MessageID, rr.ChannelID,
		); err != nil {
			return fail(err)
		}
		for _, opt := range rr.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO verify_role_options (emoji, role_id) VALUES (?, ?)`,
				opt.Emoji, opt.RoleID,
			); err != nil {
				return fail(err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM command_overrides`); err != nil {
		return fail(err)
	}
	for name, ov := range rec.Overrides {
		rolesJSON, _ := json.Marshal(ov.AllowedRoles)
		usersJSON, _ := json.Marshal(ov.AllowedUsers)
		disabled := 0
		if ov.Disabled {
			disabled = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO command_overrides (command_name, disabled, allowed_roles, allowed_users) VALUES (?, ?, ?, ?)`,
			name, disabled, string(rolesJSON), string(usersJSON),
		); err != nil {
			return fail(err)
		}
	}

	enabled := 0
	if rec.AutoKick.Enabled {
		enabled = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO autokick_config (id, enabled, min_age_days) VALUES (1, ?, ?)`,
		enabled, rec.AutoKick.MinAgeDays,
	); err != nil {
		return fail(err)
	}

	return tx.Commit()
}

// DeleteGuild removes the guild's database file and its WAL sidecars.
func (s *SQLiteStore) DeleteGuild(ctx context.Context, guildID string) error {
	path := s.guildPath(guildID)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close is a no-op; connections are opened per operation.
func (s *SQLiteStore) Close() error {
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readIDs(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT user_id FROM %s ORDER BY user_id", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func writeIDs(ctx context.Context, tx execer, table string, ids []string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (user_id) VALUES (?)", table), id,
		); err != nil {
			return err
		}
	}
	return nil
}
