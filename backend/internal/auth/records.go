package auth

// RoleOption is a single emoji to role mapping on the verification message.
type RoleOption struct {
	Emoji  string `json:"emoji" firestore:"emoji"`
	RoleID string `json:"role_id" firestore:"role_id"`
}

// ReactionRoleConfig describes the guild's verification message and its
// emoji to role mappings.
type ReactionRoleConfig struct {
	MessageID string       `json:"message_id" firestore:"message_id"`
	ChannelID string       `json:"channel_id" firestore:"channel_id"`
	Options   []RoleOption `json:"options" firestore:"options"`
}

// CommandOverride controls who may run a named command in a guild.
// An empty AllowedUsers list defers to AllowedRoles; both empty means
// anyone may run it (unless Disabled).
type CommandOverride struct {
	Disabled     bool     `json:"disabled" firestore:"disabled"`
	AllowedRoles []string `json:"allowed_roles" firestore:"allowed_roles"`
	AllowedUsers []string `json:"allowed_users" firestore:"allowed_users"`
}

// AutoKickConfig kicks members whose account age is below a minimum.
type AutoKickConfig struct {
	Enabled    bool `json:"enabled" firestore:"enabled"`
	MinAgeDays int  `json:"min_age_days" firestore:"min_age_days"`
}

// GuildRecord is the full persisted state for one guild.
type GuildRecord struct {
	Verified      []string                    `json:"verified_users" firestore:"verified_users"`
	Blacklisted   []string                    `json:"blacklisted_users" firestore:"blacklisted_users"`
	Whitelisted   []string                    `json:"whitelisted_users" firestore:"whitelisted_users"`
	ReactionRoles *ReactionRoleConfig         `json:"reaction_roles,omitempty" firestore:"reaction_roles"`
	Overrides     map[string]*CommandOverride `json:"command_overrides,omitempty" firestore:"command_overrides"`
	AutoKick      AutoKickConfig              `json:"autokick" firestore:"autokick"`
}

// GlobalRecord is the installation-wide persisted state.
type GlobalRecord struct {
	Admins     []string `json:"admins" firestore:"admins"`
	Moderators []string `json:"moderators" firestore:"moderators"`
}

// NewGuildRecord returns an empty record with allocated containers.
func NewGuildRecord() *GuildRecord {
	return &GuildRecord{
		Verified:    []string{},
		Blacklisted: []string{},
		Whitelisted: []string{},
		Overrides:   map[string]*CommandOverride{},
	}
}

// Clone returns a deep copy, safe to hand to the persistence worker while
// handlers keep mutating the original under the manager lock.
func (g *GuildRecord) Clone() *GuildRecord {
	out := &GuildRecord{
		Verified:    append([]string{}, g.Verified...),
		Blacklisted: append([]string{}, g.Blacklisted...),
		Whitelisted: append([]string{}, g.Whitelisted...),
		AutoKick:    g.AutoKick,
		Overrides:   make(map[string]*CommandOverride, len(g.Overrides)),
	}
	if g.ReactionRoles != nil {
		rr := &ReactionRoleConfig{
			MessageID: g.ReactionRoles.MessageID,
			ChannelID: g.ReactionRoles.ChannelID,
			Options:   append([]RoleOption{}, g.ReactionRoles.Options...),
		}
		out.ReactionRoles = rr
	}
	for name, ov := range g.Overrides {
		out.Overrides[name] = &CommandOverride{
			Disabled:     ov.Disabled,
			AllowedRoles: append([]string{}, ov.AllowedRoles...),
			AllowedUsers: append([]string{}, ov.AllowedUsers...),
		}
	}
	return out
}

// Clone returns a deep copy of the global record.
func (g *GlobalRecord) Clone() *GlobalRecord {
	return &GlobalRecord{
		Admins:     append([]string{}, g.Admins...),
		Moderators: append([]string{}, g.Moderators...),
	}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
