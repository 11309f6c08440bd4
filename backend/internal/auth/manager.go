package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"manga-bot/backend/pkg/logger"
)

// defaultAdminOnly lists command names that fall back to an admin-only
// policy when a guild has no explicit override configured. Absence of
// configuration is a conservative built-in policy, not "allow everyone".
var defaultAdminOnly = map[string]struct{}{
	"kick":        {},
	"ban":         {},
	"unban":       {},
	"mute":        {},
	"unmute":      {},
	"deafen":      {},
	"timeout":     {},
	"clear":       {},
	"purge":       {},
	"addrole":     {},
	"removerole":  {},
	"admin":       {},
	"unadmin":     {},
	"mod":         {},
	"unmod":       {},
	"blacklist":   {},
	"unblacklist": {},
	"whitelist":   {},
	"unwhitelist": {},
	"verifysetup": {},
	"override":    {},
	"autokick":    {},
	"backup":      {},
	"vckick":      {},
	"stopvckick":  {},
}

// Manager owns the in-memory authorization state. Reads never touch
// storage; mutations update memory under the lock and then enqueue a
// coalesced save.
type Manager struct {
	mu      sync.RWMutex
	ownerID string
	global  *GlobalRecord
	guilds  map[string]*GuildRecord
	queue   *Queue
	log     *zap.Logger
}

// NewManager creates a manager with empty state. Call Load before use.
func NewManager(ownerID string) *Manager {
	return &Manager{
		ownerID: ownerID,
		global:  &GlobalRecord{Admins: []string{}, Moderators: []string{}},
		guilds:  map[string]*GuildRecord{},
		log:     logger.Named("auth"),
	}
}

// SetQueue attaches the persistence queue. Mutations before this point
// stay in memory only.
func (m *Manager) SetQueue(q *Queue) {
	m.mu.Lock()
	m.queue = q
	m.mu.Unlock()
}

// Load replaces in-memory state with the backend's contents.
func (m *Manager) Load(ctx context.Context, store Store) error {
	global, err := store.LoadGlobal(ctx)
	if err != nil {
		return err
	}
	ids, err := store.ListGuilds(ctx)
	if err != nil {
		return err
	}
	guilds := make(map[string]*GuildRecord, len(ids))
	for _, id := range ids {
		rec, err := store.LoadGuild(ctx, id)
		if err != nil {
			m.log.Error("Failed to load guild record", zap.String("guild_id", id), zap.Error(err))
			continue
		}
		guilds[id] = rec
	}

	m.mu.Lock()
	m.global = global
	m.guilds = guilds
	m.mu.Unlock()

	m.log.Info("Auth state loaded", zap.Int("guilds", len(guilds)))
	return nil
}

// Bootstrap reconciles backend records with live guild membership:
// missing records are created, orphaned records are deleted.
func (m *Manager) Bootstrap(liveGuildIDs []string) {
	live := make(map[string]struct{}, len(liveGuildIDs))
	for _, id := range liveGuildIDs {
		live[id] = struct{}{}
	}

	m.mu.Lock()
	var created, orphaned []string
	for _, id := range liveGuildIDs {
		if _, ok := m.guilds[id]; !ok {
			m.guilds[id] = NewGuildRecord()
			created = append(created, id)
		}
	}
	for id := range m.guilds {
		if _, ok := live[id]; !ok {
			delete(m.guilds, id)
			orphaned = append(orphaned, id)
		}
	}
	q := m.queue
	m.mu.Unlock()

	if q != nil {
		for _, id := range created {
			q.EnqueueGuild(id)
		}
		for _, id := range orphaned {
			q.EnqueueDelete(id)
		}
	}
	m.log.Info("Bootstrap reconciled guild records",
		zap.Int("created", len(created)),
		zap.Int("orphaned", len(orphaned)),
	)
}

// guildLocked returns the record for a guild, creating it lazily. Caller
// must hold the write lock.
func (m *Manager) guildLocked(guildID string) *GuildRecord {
	rec, ok := m.guilds[guildID]
	if !ok {
		rec = NewGuildRecord()
		m.guilds[guildID] = rec
	}
	return rec
}

func (m *Manager) enqueueGlobal() {
	if m.queue != nil {
		m.queue.EnqueueGlobal()
	}
}

func (m *Manager) enqueueGuild(guildID string) {
	if m.queue != nil {
		m.queue.EnqueueGuild(guildID)
	}
}

// SnapshotGlobal returns a deep copy of global state for the persistence
// worker. Always reflects the state current at call time.
func (m *Manager) SnapshotGlobal() *GlobalRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.global.Clone()
}

// SnapshotGuild returns a deep copy of one guild's state, or nil when the
// guild has no record (deleted between enqueue and drain).
func (m *Manager) SnapshotGuild(guildID string) *GuildRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	if !ok {
		return nil
	}
	return rec.Clone()
}

// Predicates

// IsOwner reports whether the user is the bot owner.
func (m *Manager) IsOwner(userID string) bool {
	return userID != "" && userID == m.ownerID
}

// IsAdmin reports whether the user is a bot admin. The owner is always
// an admin.
func (m *Manager) IsAdmin(userID string) bool {
	if m.IsOwner(userID) {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return contains(m.global.Admins, userID)
}

// IsModerator reports whether the user is at least a bot moderator.
// Admins imply moderators.
func (m *Manager) IsModerator(userID string) bool {
	if m.IsAdmin(userID) {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return contains(m.global.Moderators, userID)
}

// IsBlacklisted reports whether the user is blacklisted in the guild.
// The owner can never be blacklisted.
func (m *Manager) IsBlacklisted(guildID, userID string) bool {
	if m.IsOwner(userID) {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	return ok && contains(rec.Blacklisted, userID)
}

// IsVerified reports whether the user completed reaction verification.
func (m *Manager) IsVerified(guildID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	return ok && contains(rec.Verified, userID)
}

// IsWhitelisted reports whether the user is whitelisted in the guild.
func (m *Manager) IsWhitelisted(guildID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	return ok && contains(rec.Whitelisted, userID)
}

// CheckCommandOverride decides whether the invoker may run the named
// command in the guild. Evaluation order: owner bypass, explicit override
// (disabled, allowed users, allowed roles), then the built-in
// admin-only default for sensitive commands.
func (m *Manager) CheckCommandOverride(guildID, command, userID string, roleIDs []string) bool {
	if m.IsOwner(userID) {
		return true
	}

	m.mu.RLock()
	var ov *CommandOverride
	if rec, ok := m.guilds[guildID]; ok {
		ov = rec.Overrides[command]
	}
	m.mu.RUnlock()

	if ov == nil {
		if _, sensitive := defaultAdminOnly[command]; sensitive {
			return m.IsAdmin(userID)
		}
		return true
	}
	if ov.Disabled {
		return false
	}
	if len(ov.AllowedUsers) > 0 {
		return contains(ov.AllowedUsers, userID)
	}
	if len(ov.AllowedRoles) > 0 {
		for _, r := range roleIDs {
			if contains(ov.AllowedRoles, r) {
				return true
			}
		}
		return false
	}
	return true
}

// Global mutations

func (m *Manager) AddAdmin(userID string) {
	m.mu.Lock()
	if !contains(m.global.Admins, userID) {
		m.global.Admins = append(m.global.Admins, userID)
	}
	m.mu.Unlock()
	m.enqueueGlobal()
}

func (m *Manager) RemoveAdmin(userID string) {
	m.mu.Lock()
	m.global.Admins = remove(m.global.Admins, userID)
	m.mu.Unlock()
	m.enqueueGlobal()
}

func (m *Manager) AddModerator(userID string) {
	m.mu.Lock()
	if !contains(m.global.Moderators, userID) {
		m.global.Moderators = append(m.global.Moderators, userID)
	}
	m.mu.Unlock()
	m.enqueueGlobal()
}

func (m *Manager) RemoveModerator(userID string) {
	m.mu.Lock()
	m.global.Moderators = remove(m.global.Moderators, userID)
	m.mu.Unlock()
	m.enqueueGlobal()
}

// Guild mutations

// Blacklist adds the user to the guild blacklist. Returns false when the
// target is the owner, who can never be blacklisted.
func (m *Manager) Blacklist(guildID, userID string) bool {
	if m.IsOwner(userID) {
		return false
	}
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	if !contains(rec.Blacklisted, userID) {
		rec.Blacklisted = append(rec.Blacklisted, userID)
	}
	m.mu.Unlock()
	m.enqueueGuild(guildID)
	return true
}

func (m *Manager) Unblacklist(guildID, userID string) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	rec.Blacklisted = remove(rec.Blacklisted, userID)
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

func (m *Manager) Whitelist(guildID, userID string) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	if !contains(rec.Whitelisted, userID) {
		rec.Whitelisted = append(rec.Whitelisted, userID)
	}
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

func (m *Manager) Unwhitelist(guildID, userID string) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	rec.Whitelisted = remove(rec.Whitelisted, userID)
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

// SetVerified records or clears a user's verified status.
func (m *Manager) SetVerified(guildID, userID string, verified bool) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	if verified {
		if !contains(rec.Verified, userID) {
			rec.Verified = append(rec.Verified, userID)
		}
	} else {
		rec.Verified = remove(rec.Verified, userID)
	}
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

// SetReactionRoles replaces the guild's verification message config.
func (m *Manager) SetReactionRoles(guildID string, cfg *ReactionRoleConfig) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	rec.ReactionRoles = cfg
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

// ReactionRole resolves an emoji on the verification message to a role id.
// Returns false when the message or emoji is not configured.
func (m *Manager) ReactionRole(guildID, messageID, emoji string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	if !ok || rec.ReactionRoles == nil || rec.ReactionRoles.MessageID != messageID {
		return "", false
	}
	for _, opt := range rec.ReactionRoles.Options {
		if opt.Emoji == emoji {
			return opt.RoleID, true
		}
	}
	return "", false
}

// VerifyRoleIDs returns every role id mapped on the verification message.
func (m *Manager) VerifyRoleIDs(guildID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.guilds[guildID]
	if !ok || rec.ReactionRoles == nil {
		return nil
	}
	ids := make([]string, 0, len(rec.ReactionRoles.Options))
	for _, opt := range rec.ReactionRoles.Options {
		ids = append(ids, opt.RoleID)
	}
	return ids
}

// SetOverride sets or clears (nil) a command override.
func (m *Manager) SetOverride(guildID, command string, ov *CommandOverride) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	if ov == nil {
		delete(rec.Overrides, command)
	} else {
		rec.Overrides[command] = ov
	}
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

// SetAutoKick updates the guild's account-age gate.
func (m *Manager) SetAutoKick(guildID string, cfg AutoKickConfig) {
	m.mu.Lock()
	rec := m.guildLocked(guildID)
	rec.AutoKick = cfg
	m.mu.Unlock()
	m.enqueueGuild(guildID)
}

// AutoKick returns the guild's account-age gate config.
func (m *Manager) AutoKick(guildID string) AutoKickConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.guilds[guildID]; ok {
		return rec.AutoKick
	}
	return AutoKickConfig{}
}

// EnsureGuild creates an empty record for a newly joined guild.
func (m *Manager) EnsureGuild(guildID string) {
	m.mu.Lock()
	_, existed := m.guilds[guildID]
	if !existed {
		m.guilds[guildID] = NewGuildRecord()
	}
	m.mu.Unlock()
	if !existed {
		m.enqueueGuild(guildID)
	}
}

// RemoveGuild drops a guild's state entirely (bot was removed).
func (m *Manager) RemoveGuild(guildID string) {
	m.mu.Lock()
	delete(m.guilds, guildID)
	q := m.queue
	m.mu.Unlock()
	if q != nil {
		q.EnqueueDelete(guildID)
	}
}

// GuildIDs returns the ids of every guild with an in-memory record.
func (m *Manager) GuildIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.guilds))
	for id := range m.guilds {
		ids = append(ids, id)
	}
	return ids
}
