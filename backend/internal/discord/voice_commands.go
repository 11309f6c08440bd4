package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (h *Handler) cmdJoin(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" {
		h.reply(s, m.ChannelID, "Voice commands only work in a server.")
		return
	}
	if err := h.voiceMgr.Join(m.GuildID); err != nil {
		h.logger.Error("Join failed", zap.String("guild_id", m.GuildID), zap.Error(err))
		h.reply(s, m.ChannelID, "I couldn't join the voice channel.")
		return
	}
	h.reply(s, m.ChannelID, "Joined the voice channel!")
}

func (h *Handler) cmdLeave(s *discordgo.Session, m *discordgo.MessageCreate) {
	if h.voiceMgr.Leave(m.GuildID) {
		h.reply(s, m.ChannelID, "Left the voice channel. Use "+h.prefix+"join to bring me back.")
	} else {
		h.reply(s, m.ChannelID, "I'm not in a voice channel.")
	}
}

func (h *Handler) cmdStop(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.voiceMgr.Responder().Stop()
	h.reply(s, m.ChannelID, "Stopped.")
}

func (h *Handler) cmdSay(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"say <text>")
		return
	}
	if err := h.voiceMgr.Say(context.Background(), m.GuildID, text, ""); err != nil {
		h.logger.Warn("Say failed", zap.String("guild_id", m.GuildID), zap.Error(err))
		h.reply(s, m.ChannelID, "I'm not connected to voice. Use "+h.prefix+"join first.")
	}
}

func (h *Handler) cmdListen(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	policy := h.voiceMgr.Policy(m.GuildID)
	if len(args) == 0 {
		if policy.Listening() {
			h.reply(s, m.ChannelID, "I'm listening. Use "+h.prefix+"listen off to stop.")
		} else {
			h.reply(s, m.ChannelID, "I'm not listening. Use "+h.prefix+"listen on to start.")
		}
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		policy.SetListening(true)
		h.reply(s, m.ChannelID, "Listening enabled.")
	case "off":
		policy.SetListening(false)
		h.reply(s, m.ChannelID, "Listening disabled.")
	default:
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"listen on|off")
	}
}

func (h *Handler) cmdClaim(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.voiceMgr.Policy(m.GuildID).Claim(m.Author.ID)
	h.reply(s, m.ChannelID, fmt.Sprintf("Okay <@%s>, I'm only listening to you now.", m.Author.ID))
}

func (h *Handler) cmdReset(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.voiceMgr.Policy(m.GuildID).Reset()
	h.reply(s, m.ChannelID, "I'm listening to everyone again.")
}

// cmdIgnore toggles a speaker on the session ignore list.
func (h *Handler) cmdIgnore(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"ignore <user>")
		return
	}
	userID := parseUserID(args[0])
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	policy := h.voiceMgr.Policy(m.GuildID)
	if policy.IsBlocked(userID) {
		policy.Unblock(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("No longer ignoring <@%s>.", userID))
	} else {
		policy.Block(userID)
		h.reply(s, m.ChannelID, fmt.Sprintf("Ignoring <@%s> in voice.", userID))
	}
}

func (h *Handler) cmdVoice(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	responder := h.voiceMgr.Responder()
	if len(args) == 0 {
		h.reply(s, m.ChannelID, fmt.Sprintf("Voice changed to %s!", responder.CycleVoice()))
		return
	}
	name := strings.ToLower(args[0])
	if !responder.SetVoice(name) {
		h.reply(s, m.ChannelID, "Unknown voice. Options: english_female, english, arabic, arabic_male.")
		return
	}
	h.reply(s, m.ChannelID, fmt.Sprintf("Voice changed to %s!", name))
}

func (h *Handler) cmdVoiceStatus(s *discordgo.Session, m *discordgo.MessageCreate) {
	policy := h.voiceMgr.Policy(m.GuildID)

	var b strings.Builder
	if h.voiceMgr.Connected(m.GuildID) {
		b.WriteString("Connected to voice.")
	} else {
		b.WriteString("Not connected to voice.")
	}
	if policy.Listening() {
		b.WriteString(" Listening: on.")
	} else {
		b.WriteString(" Listening: off.")
	}
	if owner := policy.ClaimedBy(); owner != "" {
		b.WriteString(fmt.Sprintf(" Claimed by <@%s>.", owner))
	}
	b.WriteString(fmt.Sprintf(" Voice: %s.", h.voiceMgr.Responder().CurrentVoice()))
	h.reply(s, m.ChannelID, b.String())
}

// cmdVCKick flags a user for removal from voice whenever they join, and
// kicks them immediately when already connected. Without an argument it
// lists the flagged users.
func (h *Handler) cmdVCKick(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	policy := h.voiceMgr.Policy(m.GuildID)
	if len(args) == 0 {
		ids := policy.AutoKickList()
		if len(ids) == 0 {
			h.reply(s, m.ChannelID, "No one is being auto-kicked. Use "+h.prefix+"vckick @user to add someone.")
			return
		}
		lines := []string{"**Auto-kick list:**"}
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("- <@%s>", id))
		}
		h.reply(s, m.ChannelID, strings.Join(lines, "\n"))
		return
	}

	userID := parseUserID(args[0])
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	policy.AddAutoKick(userID)
	h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> will be auto-kicked from voice!", userID))

	// Kick them now if they're already connected
	if err := s.GuildMemberMove(m.GuildID, userID, nil); err == nil {
		h.reply(s, m.ChannelID, "Kicked from voice!")
	} else {
		h.logger.Debug("Immediate voice kick skipped",
			zap.String("guild_id", m.GuildID),
			zap.String("target_id", userID),
			zap.Error(err),
		)
	}
}

// cmdStopVCKick unflags a user from the auto-kick list.
func (h *Handler) cmdStopVCKick(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		h.reply(s, m.ChannelID, "Usage: "+h.prefix+"stopvckick <user>")
		return
	}
	userID := parseUserID(args[0])
	if userID == "" {
		h.reply(s, m.ChannelID, "Mention the user or pass their id.")
		return
	}
	if !h.voiceMgr.Policy(m.GuildID).RemoveAutoKick(userID) {
		h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> is not being auto-kicked.", userID))
		return
	}
	h.reply(s, m.ChannelID, fmt.Sprintf("<@%s> can join voice now.", userID))
}
