package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	ownerID = "owner-1"
	guildID = "guild-42"
)

func TestPredicateHierarchy(t *testing.T) {
	m := NewManager(ownerID)
	m.AddAdmin("admin-1")
	m.AddModerator("mod-1")

	assert.True(t, m.IsOwner(ownerID))
	assert.False(t, m.IsOwner("admin-1"))

	// Owner implies admin implies moderator
	assert.True(t, m.IsAdmin(ownerID))
	assert.True(t, m.IsAdmin("admin-1"))
	assert.False(t, m.IsAdmin("mod-1"))

	assert.True(t, m.IsModerator(ownerID))
	assert.True(t, m.IsModerator("admin-1"))
	assert.True(t, m.IsModerator("mod-1"))
	assert.False(t, m.IsModerator("random"))
}

func TestOwnerCannotBeBlacklisted(t *testing.T) {
	m := NewManager(ownerID)
	assert.False(t, m.Blacklist(guildID, ownerID))
	assert.False(t, m.IsBlacklisted(guildID, ownerID))

	assert.True(t, m.Blacklist(guildID, "user-1"))
	assert.True(t, m.IsBlacklisted(guildID, "user-1"))

	m.Unblacklist(guildID, "user-1")
	assert.False(t, m.IsBlacklisted(guildID, "user-1"))
}

func TestDefaultAdminOnlyPolicy(t *testing.T) {
	m := NewManager(ownerID)
	m.AddAdmin("admin-1")

	// No override configured: sensitive commands fall back to admin-only
	assert.False(t, m.CheckCommandOverride(guildID, "ban", "user-1", nil))
	assert.True(t, m.CheckCommandOverride(guildID, "ban", "admin-1", nil))

	// Unlisted, non-sensitive commands are allowed for everyone
	assert.True(t, m.CheckCommandOverride(guildID, "ping", "user-1", nil))
}

func TestOverrideEvaluationOrder(t *testing.T) {
	m := NewManager(ownerID)

	m.SetOverride(guildID, "play", &CommandOverride{Disabled: true})
	assert.False(t, m.CheckCommandOverride(guildID, "play", "user-1", []string{"role-1"}))

	// Owner bypasses even a disabled command
	assert.True(t, m.CheckCommandOverride(guildID, "play", ownerID, nil))

	// Allowed-users list wins over roles when non-empty
	m.SetOverride(guildID, "play", &CommandOverride{
		AllowedUsers: []string{"user-1"},
		AllowedRoles: []string{"role-1"},
	})
	assert.True(t, m.CheckCommandOverride(guildID, "play", "user-1", nil))
	assert.False(t, m.CheckCommandOverride(guildID, "play", "user-2", []string{"role-1"}))

	// Roles apply when no user list is set
	m.SetOverride(guildID, "play", &CommandOverride{AllowedRoles: []string{"role-1"}})
	assert.True(t, m.CheckCommandOverride(guildID, "play", "user-2", []string{"role-1", "role-9"}))
	assert.False(t, m.CheckCommandOverride(guildID, "play", "user-2", []string{"role-9"}))

	// Empty override allows everyone
	m.SetOverride(guildID, "play", &CommandOverride{})
	assert.True(t, m.CheckCommandOverride(guildID, "play", "user-2", nil))

	// Clearing restores the default policy
	m.SetOverride(guildID, "play", nil)
	assert.True(t, m.CheckCommandOverride(guildID, "play", "user-2", nil))
}

func TestReactionRoleResolution(t *testing.T) {
	m := NewManager(ownerID)
	m.SetReactionRoles(guildID, &ReactionRoleConfig{
		MessageID: "msg-1",
		ChannelID: "chan-1",
		Options: []RoleOption{
			{Emoji: "✅", RoleID: "role-verified"},
			{Emoji: "🎮", RoleID: "role-gamer"},
		},
	})

	roleID, ok := m.ReactionRole(guildID, "msg-1", "✅")
	assert.True(t, ok)
	assert.Equal(t, "role-verified", roleID)

	_, ok = m.ReactionRole(guildID, "msg-1", "❌")
	assert.False(t, ok)

	// Wrong message id is not the verification message
	_, ok = m.ReactionRole(guildID, "msg-2", "✅")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"role-verified", "role-gamer"}, m.VerifyRoleIDs(guildID))
}

func TestVerifiedRoundTrip(t *testing.T) {
	m := NewManager(ownerID)
	assert.False(t, m.IsVerified(guildID, "user-1"))

	m.SetVerified(guildID, "user-1", true)
	assert.True(t, m.IsVerified(guildID, "user-1"))

	m.SetVerified(guildID, "user-1", false)
	assert.False(t, m.IsVerified(guildID, "user-1"))
}

func TestBootstrapReconciliation(t *testing.T) {
	m := NewManager(ownerID)
	m.SetVerified("stale-guild", "user-1", true)
	m.SetVerified("live-guild", "user-2", true)

	m.Bootstrap([]string{"live-guild", "new-guild"})

	ids := m.GuildIDs()
	assert.ElementsMatch(t, []string{"live-guild", "new-guild"}, ids)
	assert.True(t, m.IsVerified("live-guild", "user-2"))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := NewManager(ownerID)
	m.SetVerified(guildID, "user-1", true)

	snap := m.SnapshotGuild(guildID)
	snap.Verified = append(snap.Verified, "user-2")
	snap.Overrides["x"] = &CommandOverride{Disabled: true}

	assert.False(t, m.IsVerified(guildID, "user-2"))
	assert.True(t, m.CheckCommandOverride(guildID, "x", "user-9", nil))

	assert.Nil(t, m.SnapshotGuild("missing-guild"))
}
