package voice

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// silenceFrame is the Opus silence packet; a short burst proves the
// connection is alive without audible output.
var silenceFrame = []byte{0xF8, 0xFF, 0xFE}

// keepAliveLoop periodically emits a silent blip so host-side inactivity
// timeouts never reap a quiet session. A dead connection is left alone;
// the reconnect paths own recovery.
func (m *Manager) keepAliveLoop(ctx context.Context, sess *Session) {
	defer sess.wg.Done()

	ticker := time.NewTicker(m.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sess.vc.Ready {
				continue
			}
			if err := sess.vc.Speaking(true); err != nil {
				m.log.Debug("Keep-alive speaking toggle failed",
					zap.String("guild_id", sess.GuildID),
					zap.Error(err),
				)
				continue
			}
			for i := 0; i < 5; i++ {
				select {
				case <-ctx.Done():
					return
				case sess.vc.OpusSend <- silenceFrame:
				case <-time.After(time.Second):
				}
			}
			sess.vc.Speaking(false)
			m.log.Debug("Keep-alive blip sent", zap.String("guild_id", sess.GuildID))
		}
	}
}

// HandleVoiceStateUpdate watches voice state for two things: the bot's
// own connection vanishing, which schedules a rejoin unless the leave was
// deliberate, and flagged users joining a channel, who are kicked back out.
func (m *Manager) HandleVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || vsu.UserID != s.State.User.ID {
		m.autoKickOnJoin(s, vsu)
		return
	}
	if vsu.ChannelID != "" {
		return
	}

	guildID := vsu.GuildID
	if !m.Connected(guildID) {
		return
	}
	if m.ManualDisconnect(guildID) {
		return
	}

	m.log.Warn("Unexpected voice disconnect, scheduling rejoin",
		zap.String("guild_id", guildID),
		zap.Duration("delay", m.cfg.RejoinDelay),
	)
	m.teardown(guildID, false)

	time.AfterFunc(m.cfg.RejoinDelay, func() {
		if m.ManualDisconnect(guildID) {
			return
		}
		if err := m.Join(guildID); err != nil {
			m.log.Error("Rejoin failed; enforcement loop will retry",
				zap.String("guild_id", guildID),
				zap.Error(err),
			)
		}
	})
}

// autoKickOnJoin removes a flagged user the moment they appear in any
// voice channel of the guild.
func (m *Manager) autoKickOnJoin(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.ChannelID == "" {
		return
	}
	if !m.Policy(vsu.GuildID).IsAutoKick(vsu.UserID) {
		return
	}
	if err := s.GuildMemberMove(vsu.GuildID, vsu.UserID, nil); err != nil {
		m.log.Warn("Auto-kick from voice failed",
			zap.String("guild_id", vsu.GuildID),
			zap.String("user_id", vsu.UserID),
			zap.Error(err),
		)
		return
	}
	m.log.Info("Auto-kicked user from voice",
		zap.String("guild_id", vsu.GuildID),
		zap.String("user_id", vsu.UserID),
	)
}

// EnforceLoop scans every guild on a slow interval and ensures a session
// exists in the designated channel, providing eventual-consistency retry
// for failed rejoins. Guilds that deliberately left are skipped.
func (m *Manager) EnforceLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.EnforceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, guild := range m.dg.State.Guilds {
				if m.Connected(guild.ID) || m.ManualDisconnect(guild.ID) {
					continue
				}
				if err := m.Join(guild.ID); err != nil {
					m.log.Debug("Enforcement join failed",
						zap.String("guild_id", guild.ID),
						zap.Error(err),
					)
				}
			}
		}
	}
}
