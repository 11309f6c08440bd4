package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"manga-bot/backend/internal/adapter"
	"manga-bot/backend/internal/auth"
	"manga-bot/backend/internal/voice"
	"manga-bot/backend/pkg/logger"
)

// Handler routes Discord gateway events: prefix commands, the mention
// and wake-word chat path, reaction verification, and member gating.
type Handler struct {
	auth     *auth.Manager
	voiceMgr *voice.Manager
	chat     *adapter.Chain
	backup   *auth.Backup
	prefix   string
	logger   *zap.Logger
}

// NewHandler creates the event handler. backup is nil when the active
// storage backend has no local files to snapshot.
func NewHandler(authMgr *auth.Manager, voiceMgr *voice.Manager, chat *adapter.Chain, backup *auth.Backup, prefix string) *Handler {
	return &Handler{
		auth:     authMgr,
		voiceMgr: voiceMgr,
		chat:     chat,
		backup:   backup,
		prefix:   prefix,
		logger:   logger.Named("discord"),
	}
}

// HandleMessage processes a message create event: prefix commands first,
// then the conversational path for mentions and wake words.
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, h.prefix) {
		h.dispatchCommand(s, m, strings.TrimPrefix(content, h.prefix))
		return
	}

	h.handleChat(s, m, content)
}

// dispatchCommand runs one prefix command after the authorization gate.
func (h *Handler) dispatchCommand(s *discordgo.Session, m *discordgo.MessageCreate, invocation string) {
	fields := strings.Fields(invocation)
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	if !h.allowed(m, command) {
		h.logger.Debug("Command blocked by gate",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.Author.ID),
			zap.String("command", command),
		)
		return
	}

	h.logger.Info("Dispatching command",
		zap.String("guild_id", m.GuildID),
		zap.String("user_id", m.Author.ID),
		zap.String("command", command),
	)

	switch command {
	case "join":
		h.cmdJoin(s, m)
	case "leave":
		h.cmdLeave(s, m)
	case "stop":
		h.cmdStop(s, m)
	case "say":
		h.cmdSay(s, m, args)
	case "listen":
		h.cmdListen(s, m, args)
	case "claim":
		h.cmdClaim(s, m)
	case "reset":
		h.cmdReset(s, m)
	case "ignore":
		h.cmdIgnore(s, m, args)
	case "voice":
		h.cmdVoice(s, m, args)
	case "voicestatus":
		h.cmdVoiceStatus(s, m)
	case "vckick":
		h.cmdVCKick(s, m, args)
	case "stopvckick":
		h.cmdStopVCKick(s, m, args)
	case "admin":
		h.cmdAdmin(s, m, args, true)
	case "unadmin":
		h.cmdAdmin(s, m, args, false)
	case "mod":
		h.cmdModerator(s, m, args, true)
	case "unmod":
		h.cmdModerator(s, m, args, false)
	case "blacklist":
		h.cmdBlacklist(s, m, args, true)
	case "unblacklist":
		h.cmdBlacklist(s, m, args, false)
	case "whitelist":
		h.cmdWhitelist(s, m, args, true)
	case "unwhitelist":
		h.cmdWhitelist(s, m, args, false)
	case "verifysetup":
		h.cmdVerifySetup(s, m, args)
	case "override":
		h.cmdOverride(s, m, args)
	case "autokick":
		h.cmdAutoKick(s, m, args)
	case "backup":
		h.cmdBackup(s, m)
	}
}

// handleChat replies conversationally when the bot is addressed by
// mention or wake word in a text channel, or in a DM.
func (h *Handler) handleChat(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	isDM := m.GuildID == ""

	mention := "<@" + s.State.User.ID + ">"
	nickMention := "<@!" + s.State.User.ID + ">"
	isMentioned := strings.Contains(content, mention) || strings.Contains(content, nickMention)
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
		}
	}

	if !isDM && !isMentioned && !voice.HasWakeWord(content) {
		return
	}
	if !isDM && h.auth.IsBlacklisted(m.GuildID, m.Author.ID) {
		return
	}
	if !h.chat.Enabled() {
		return
	}

	text := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(content, mention, ""), nickMention, ""))
	if isMentioned && text == "" {
		text = "hello"
	}
	if voice.HasWakeWord(text) {
		if rest := voice.StripWakeWord(text); rest != "" {
			text = rest
		}
	}

	reply := h.chat.ChatResponse(context.Background(), m.Author.Username, text)
	h.reply(s, m.ChannelID, reply)
}

// reply sends a message, logging rather than surfacing failures.
func (h *Handler) reply(s *discordgo.Session, channelID, text string) {
	if text == "" {
		return
	}
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		h.logger.Error("Failed to send message",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}
}

// parseUserID extracts a user id from a raw id or a <@id>/<@!id> mention.
func parseUserID(token string) string {
	token = strings.TrimSuffix(strings.TrimPrefix(token, "<@"), ">")
	token = strings.TrimPrefix(token, "!")
	for _, ch := range token {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return token
}

// parseRoleID extracts a role id from a raw id or a <@&id> mention.
func parseRoleID(token string) string {
	token = strings.TrimSuffix(strings.TrimPrefix(token, "<@&"), ">")
	for _, ch := range token {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return token
}
