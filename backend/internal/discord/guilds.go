package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleGuildCreate ensures a store record exists for the guild.
func (h *Handler) HandleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	h.auth.EnsureGuild(g.ID)
	h.logger.Debug("Guild available", zap.String("guild_id", g.ID), zap.String("name", g.Name))
}

// HandleGuildDelete drops the guild's state when the bot is removed.
// Outage-driven unavailability keeps the record.
func (h *Handler) HandleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	h.auth.RemoveGuild(g.ID)
	h.logger.Info("Guild removed, state deleted", zap.String("guild_id", g.ID))
}
