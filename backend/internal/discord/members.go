package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleMemberAdd applies the account-age gate to new members. The
// creation time comes from the user id snowflake, so no extra API call
// is needed to judge the account.
func (h *Handler) HandleMemberAdd(s *discordgo.Session, g *discordgo.GuildMemberAdd) {
	if g.User == nil || g.User.Bot {
		return
	}
	cfg := h.auth.AutoKick(g.GuildID)
	if !cfg.Enabled || cfg.MinAgeDays <= 0 {
		return
	}

	created, err := discordgo.SnowflakeTimestamp(g.User.ID)
	if err != nil {
		h.logger.Warn("Unparseable user snowflake",
			zap.String("user_id", g.User.ID),
			zap.Error(err),
		)
		return
	}
	ageDays := int(time.Since(created).Hours() / 24)
	if ageDays >= cfg.MinAgeDays {
		return
	}

	reason := fmt.Sprintf("Account age %d days is below the minimum of %d days", ageDays, cfg.MinAgeDays)
	if err := s.GuildMemberDeleteWithReason(g.GuildID, g.User.ID, reason); err != nil {
		h.logger.Error("Autokick failed",
			zap.String("guild_id", g.GuildID),
			zap.String("user_id", g.User.ID),
			zap.Error(err),
		)
		return
	}
	h.logger.Info("Autokicked young account",
		zap.String("guild_id", g.GuildID),
		zap.String("user_id", g.User.ID),
		zap.Int("age_days", ageDays),
		zap.Int("min_age_days", cfg.MinAgeDays),
	)
}
