package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleReactionAdd grants the mapped role when a user reacts on the
// verification message and records them as verified. Reactions on other
// messages or with unmapped emoji are silent no-ops.
func (h *Handler) HandleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.UserID == s.State.User.ID {
		return
	}
	roleID, ok := h.auth.ReactionRole(r.GuildID, r.MessageID, r.Emoji.Name)
	if !ok {
		return
	}

	if err := s.GuildMemberRoleAdd(r.GuildID, r.UserID, roleID); err != nil {
		// Role may have been deleted since setup
		h.logger.Warn("Failed to grant verification role",
			zap.String("guild_id", r.GuildID),
			zap.String("user_id", r.UserID),
			zap.String("role_id", roleID),
			zap.Error(err),
		)
		return
	}
	h.auth.SetVerified(r.GuildID, r.UserID, true)
	h.logger.Info("User verified via reaction",
		zap.String("guild_id", r.GuildID),
		zap.String("user_id", r.UserID),
		zap.String("role_id", roleID),
	)
}

// HandleReactionRemove revokes the mapped role and clears verified status
// once the member holds no mapped role anymore.
func (h *Handler) HandleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" || r.UserID == s.State.User.ID {
		return
	}
	roleID, ok := h.auth.ReactionRole(r.GuildID, r.MessageID, r.Emoji.Name)
	if !ok {
		return
	}

	if err := s.GuildMemberRoleRemove(r.GuildID, r.UserID, roleID); err != nil {
		h.logger.Warn("Failed to revoke verification role",
			zap.String("guild_id", r.GuildID),
			zap.String("user_id", r.UserID),
			zap.String("role_id", roleID),
			zap.Error(err),
		)
		return
	}

	if !h.holdsAnyVerifyRole(s, r.GuildID, r.UserID, roleID) {
		h.auth.SetVerified(r.GuildID, r.UserID, false)
		h.logger.Info("User verification cleared",
			zap.String("guild_id", r.GuildID),
			zap.String("user_id", r.UserID),
		)
	}
}

// holdsAnyVerifyRole reports whether the member still has a mapped role
// other than the one just removed.
func (h *Handler) holdsAnyVerifyRole(s *discordgo.Session, guildID, userID, removedRoleID string) bool {
	member, err := s.State.Member(guildID, userID)
	if err != nil {
		member, err = s.GuildMember(guildID, userID)
		if err != nil {
			return false
		}
	}
	mapped := map[string]struct{}{}
	for _, id := range h.auth.VerifyRoleIDs(guildID) {
		mapped[id] = struct{}{}
	}
	for _, id := range member.Roles {
		if id == removedRoleID {
			continue
		}
		if _, ok := mapped[id]; ok {
			return true
		}
	}
	return false
}
