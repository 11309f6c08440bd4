package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"manga-bot/backend/internal/auth"
)

func (h *Handler) cmdAdmin(s *discordgo.Session, m *discordgo.MessageCreate, args []string, add bool) {
	// Only the owner may change the admin list
	if !h.auth.IsOwner(m.Author.ID) {
		h.reply(s, m.ChannelID, "Only the bot owner can manage admins.")
		return
	}
	userID := targetID(args)
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	if add {
		h.auth.AddAdmin(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> is now a bot admin.", userID))
	} else {
		h.auth.RemoveAdmin(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> is no longer a bot admin.", userID))
	}
}

func (h *Handler) cmdModerator(s *discordgo.Session, m *discordgo.MessageCreate, args []string, add bool) {
	userID := targetID(args)
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	if add {
		h.auth.AddModerator(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> is now a bot moderator.", userID))
	} else {
		h.auth.RemoveModerator(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> is no longer a bot moderator.", userID))
	}
}

func (h *Handler) cmdBlacklist(s *discordgo.Session, m *discordgo.MessageCreate, args []string, add bool) {
	userID := targetID(args)
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	if add {
		if !h.auth.Blacklist(m.GuildID, userID) {
			h.reply(s, m.ChannelID, "The bot owner cannot be blacklisted.")
			return
		}
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> has been blacklisted.", userID))
	} else {
		h.auth.Unblacklist(m.GuildID, userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> has been removed from the blacklist.", userID))
	}
}

func (h *Handler) cmdWhitelist(s *discordgo.Session, m *discordgo.MessageCreate, args []string, add bool) {
	userID := targetID(args)
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	if add {
		h.auth.Whitelist(m.GuildID, userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> has been whitelisted.", userID))
	} else {
		h.auth.Unwhitelist(m.GuildID, userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> has been removed from the whitelist.", userID))
	}
}

// cmdVerifySetup posts the reaction verification message from emoji and
// role pairs and records the mapping.
func (h *Handler) cmdVerifySetup(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if m.GuildID == "" {
		return
	}
	if len(args) < 2 || len(args)%2 != 0 {
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"verifysetup <emoji> <@role> [<emoji> <@role> ...]")
		return
	}

	var options []auth.RoleOption
	var lines []string
	for i := 0; i < len(args); i += 2 {
		emoji := args[i]
		roleID := parseRoleID(args[i+1])
		if roleID == "" {
			h.reply(s, m.ChannelID, fmt.Sprintf("%q is not a role mention or id.", args[i+1]))
			return
		}
		options = append(options, auth.RoleOption{Emoji: emoji, RoleID: roleID})
		lines = append(lines, fmt.Sprintf("%s → <@&%s>", emoji, roleID))
	}

	msg, err := s.ChannelMessageSend(m.ChannelID,
		"**Verification**\nReact to get your role:\n"+strings.Join(lines, "\n"))
	if err != nil {
		h.logger.Error("Failed to post verification message",
			zap.String("guild_id", m.GuildID),
			zap.Error(err),
		)
		h.reply(s, m.ChannelID, "I couldn't post the verification message.")
		return
	}
	for _, opt := range options {
		if err := s.MessageReactionAdd(m.ChannelID, msg.ID, opt.Emoji); err != nil {
			h.logger.Warn("Failed to seed reaction",
				zap.String("emoji", opt.Emoji),
				zap.Error(err),
			)
		}
	}

	h.auth.SetReactionRoles(m.GuildID, &auth.ReactionRoleConfig{
		MessageID: msg.ID,
		ChannelID: m.ChannelID,
		Options:   options,
	})
	h.logger.Info("Verification message configured",
		zap.String("guild_id", m.GuildID),
		zap.String("message_id", msg.ID),
		zap.Int("options", len(options)),
	)
}

// cmdOverride sets, disables, or clears a per-command permission override.
func (h *Handler) cmdOverride(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	usage := "Usage: " + h.prefix + "override <command> disable|clear|users <mentions...>|roles <roles...>"
	if len(args) < 2 {
		h.reply(s, m.ChannelID, usage)
		return
	}
	command := strings.ToLower(args[0])
	mode := strings.ToLower(args[1])

	switch mode {
	case "disable":
		h.auth.SetOverride(m.GuildID, command, &auth.CommandOverride{Disabled: true})
		h.reply(s, m.ChannelID, fmt.Sprintf("Command %q is now disabled.", command))
	case "clear":
		h.auth.SetOverride(m.GuildID, command, nil)
		h.reply(s, m.ChannelID, fmt.Sprintf("Override for %q cleared, default policy applies.", command))
	case "users":
		var users []string
		for _, tok := range args[2:] {
			if id := parseUserID(tok); id != "" {
				users = append(users, id)
			}
		}
		if len(users) == 0 {
			h.reply(s, m.ChannelID, usage)
			return
		}
		h.auth.SetOverride(m.GuildID, command, &auth.CommandOverride{AllowedUsers: users})
		h.reply(s, m.ChannelID, fmt.Sprintf("Command %q restricted to %d user(s).", command, len(users)))
	case "roles":
		var roles []string
		for _, tok := range args[2:] {
			if id := parseRoleID(tok); id != "" {
				roles = append(roles, id)
			}
		}
		if len(roles) == 0 {
			h.reply(s, m.ChannelID, usage)
			return
		}
		h.auth.SetOverride(m.GuildID, command, &auth.CommandOverride{AllowedRoles: roles})
		h.reply(s, m.ChannelID, fmt.Sprintf("Command %q restricted to %d role(s).", command, len(roles)))
	default:
		h.reply(s, m.ChannelID, usage)
	}
}

// cmdAutoKick configures the account-age gate for new members.
func (h *Handler) cmdAutoKick(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		cfg := h.auth.AutoKick(m.GuildID)
		if cfg.Enabled {
			h.reply(s, m.ChannelID, fmt.Sprintf("Autokick is on: accounts younger than %d days are kicked.", cfg.MinAgeDays))
		} else {
			h.reply(s, m.ChannelID, "Autokick is off. Usage: "+h.prefix+"autokick <days>|off")
		}
		return
	}
	if strings.EqualFold(args[0], "off") {
		h.auth.SetAutoKick(m.GuildID, auth.AutoKickConfig{})
		h.reply(s, m.ChannelID, "Autokick disabled.")
		return
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"autokick <days>|off")
		return
	}
	h.auth.SetAutoKick(m.GuildID, auth.AutoKickConfig{Enabled: true, MinAgeDays: days})
	h.reply(s, m.ChannelID, fmt.Sprintf("Autokick enabled for accounts younger than %d days.", days))
}

// cmdBackup takes an immediate snapshot of the local store.
func (h *Handler) cmdBackup(s *discordgo.Session, m *discordgo.MessageCreate) {
	if h.backup == nil {
		h.reply(s, m.ChannelID, "Backups only apply to local storage.")
		return
	}
	if _, err := h.backup.Snapshot(); err != nil {
		h.logger.Error("On-demand backup failed", zap.Error(err))
		h.reply(s, m.ChannelID, "Backup failed, check the logs.")
		return
	}
	h.reply(s, m.ChannelID, "Backup complete.")
}

func targetID(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return parseUserID(args[0])
}
