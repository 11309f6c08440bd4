package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteGlobalRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rec := &GlobalRecord{
		Admins:     []string{"admin-1", "admin-2"},
		Moderators: []string{"mod-1"},
	}
	require.NoError(t, store.SaveGlobal(ctx, rec))

	loaded, err := store.LoadGlobal(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, rec.Admins, loaded.Admins)
	assert.ElementsMatch(t, rec.Moderators, loaded.Moderators)
}

func TestSQLiteGuildRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rec := NewGuildRecord()
	rec.Verified = []string{"u1", "u2"}
	rec.Blacklisted = []string{"u3"}
	rec.Whitelisted = []string{"u4"}
	rec.ReactionRoles = &ReactionRoleConfig{
		MessageID: "msg-1",
		ChannelID: "chan-1",
		Options: []RoleOption{
			{Emoji: "✅", RoleID: "role-1"},
			{Emoji: "🎮", RoleID: "role-2"},
		},
	}
	rec.Overrides["ban"] = &CommandOverride{
		Disabled:     false,
		AllowedRoles: []string{"role-1"},
		AllowedUsers: []string{"u1"},
	}
	rec.AutoKick = AutoKickConfig{Enabled: true, MinAgeDays: 7}

	require.NoError(t, store.SaveGuild(ctx, "42", rec))

	loaded, err := store.LoadGuild(ctx, "42")
	require.NoError(t, err)
	assert.ElementsMatch(t, rec.Verified, loaded.Verified)
	assert.ElementsMatch(t, rec.Blacklisted, loaded.Blacklisted)
	assert.ElementsMatch(t, rec.Whitelisted, loaded.Whitelisted)
	require.NotNil(t, loaded.ReactionRoles)
	assert.Equal(t, "msg-1", loaded.ReactionRoles.MessageID)
	assert.Len(t, loaded.ReactionRoles.Options, 2)
	require.Contains(t, loaded.Overrides, "ban")
	assert.Equal(t, []string{"role-1"}, loaded.Overrides["ban"].AllowedRoles)
	assert.Equal(t, []string{"u1"}, loaded.Overrides["ban"].AllowedUsers)
	assert.Equal(t, AutoKickConfig{Enabled: true, MinAgeDays: 7}, loaded.AutoKick)
}

func TestSQLiteSaveRewritesRecord(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rec := NewGuildRecord()
	rec.Verified = []string{"u1", "u2"}
	require.NoError(t, store.SaveGuild(ctx, "42", rec))

	rec.Verified = []string{"u2"}
	require.NoError(t, store.SaveGuild(ctx, "42", rec))

	loaded, err := store.LoadGuild(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, loaded.Verified)
}

func TestSQLiteListAndDeleteGuilds(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveGuild(ctx, "1", NewGuildRecord()))
	require.NoError(t, store.SaveGuild(ctx, "2", NewGuildRecord()))

	ids, err := store.ListGuilds(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)

	require.NoError(t, store.DeleteGuild(ctx, "1"))
	ids, err = store.ListGuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)

	// Deleting a missing guild is a no-op
	require.NoError(t, store.DeleteGuild(ctx, "missing"))
}

func TestSQLiteLegacyReactionRoleMigration(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// Build a version 0 database with the legacy single-role table
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", store.guildPath("42")))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE reaction_role (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			message_id TEXT, channel_id TEXT, emoji TEXT, role_id TEXT
		);
		INSERT INTO reaction_role VALUES (1, 'msg-legacy', 'chan-legacy', '✅', 'role-legacy');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	loaded, err := store.LoadGuild(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, loaded.ReactionRoles)
	assert.Equal(t, "msg-legacy", loaded.ReactionRoles.MessageID)
	assert.Equal(t, "chan-legacy", loaded.ReactionRoles.ChannelID)
	require.Len(t, loaded.ReactionRoles.Options, 1)
	assert.Equal(t, RoleOption{Emoji: "✅", RoleID: "role-legacy"}, loaded.ReactionRoles.Options[0])

	// Migration runs once; a second load sees the upgraded schema directly
	loaded, err = store.LoadGuild(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, loaded.ReactionRoles)
	assert.Len(t, loaded.ReactionRoles.Options, 1)
}
