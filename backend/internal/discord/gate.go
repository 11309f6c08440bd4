package discord

import (
	"github.com/bwmarrin/discordgo"
)

// allowed is the authorization gate every command dispatch passes through:
// blacklist first, then the per-command override policy. DM invocations
// have no guild state and fall through to the override default.
func (h *Handler) allowed(m *discordgo.MessageCreate, command string) bool {
	if h.auth.IsBlacklisted(m.GuildID, m.Author.ID) {
		return false
	}
	var roleIDs []string
	if m.Member != nil {
		roleIDs = m.Member.Roles
	}
	return h.auth.CheckCommandOverride(m.GuildID, command, m.Author.ID, roleIDs)
}
