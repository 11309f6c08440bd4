package voice

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"manga-bot/backend/pkg/logger"
)

// ActionRequest carries everything a member action needs: the guild, the
// invoking speaker, and the voice channel scoping the member lookup. The
// text-command path and the voice path both build one of these.
type ActionRequest struct {
	Session   *discordgo.Session
	GuildID   string
	ChannelID string
	InvokerID string
}

// Executor applies parsed member actions against guild voice state. Every
// outcome is a spoken string; voice commands never raise to the caller.
type Executor struct {
	log *zap.Logger
}

// NewExecutor creates an executor.
func NewExecutor() *Executor {
	return &Executor{log: logger.Named("executor")}
}

// Execute runs a member-action command and returns the reply to speak.
// CommandLeave, CommandChangeVoice and CommandNone are session-level and
// handled by the caller.
func (e *Executor) Execute(req ActionRequest, cmd Command) string {
	switch cmd.Kind {
	case CommandMute:
		return e.memberAction(req, cmd.Target, discordgo.PermissionVoiceMuteMembers,
			"You don't have permission to mute members.",
			func(s *discordgo.Session, m *discordgo.Member) (string, error) {
				if err := s.GuildMemberMute(req.GuildID, m.User.ID, true); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s has been muted!", DisplayName(m)), nil
			})
	case CommandUnmute:
		return e.memberAction(req, cmd.Target, discordgo.PermissionVoiceMuteMembers,
			"You don't have permission to mute members.",
			func(s *discordgo.Session, m *discordgo.Member) (string, error) {
				if err := s.GuildMemberMute(req.GuildID, m.User.ID, false); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s has been unmuted!", DisplayName(m)), nil
			})
	case CommandKick:
		return e.memberAction(req, cmd.Target, discordgo.PermissionVoiceMoveMembers,
			"You don't have permission to kick from voice.",
			func(s *discordgo.Session, m *discordgo.Member) (string, error) {
				if err := s.GuildMemberMove(req.GuildID, m.User.ID, nil); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s has been kicked from voice!", DisplayName(m)), nil
			})
	case CommandTimeout:
		return e.memberAction(req, cmd.Target, discordgo.PermissionModerateMembers,
			"You don't have permission to timeout members.",
			func(s *discordgo.Session, m *discordgo.Member) (string, error) {
				until := time.Now().Add(time.Duration(cmd.Minutes) * time.Minute)
				if err := s.GuildMemberTimeout(req.GuildID, m.User.ID, &until); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s has been timed out for %d minutes!", DisplayName(m), cmd.Minutes), nil
			})
	default:
		return ""
	}
}

func (e *Executor) memberAction(
	req ActionRequest,
	target string,
	needed int64,
	refusal string,
	act func(*discordgo.Session, *discordgo.Member) (string, error),
) string {
	if !e.invokerHasPermission(req, needed) {
		return refusal
	}

	member := MatchMember(e.channelMembers(req), target)
	if member == nil {
		return fmt.Sprintf("I couldn't find anyone named %s.", target)
	}

	reply, err := act(req.Session, member)
	if err != nil {
		e.log.Warn("Member action failed",
			zap.String("guild_id", req.GuildID),
			zap.String("target", member.User.ID),
			zap.Error(err),
		)
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Message != nil &&
			restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
			return "I don't have permission to do that."
		}
		return fmt.Sprintf("Failed: %v", err)
	}
	return reply
}

func (e *Executor) invokerHasPermission(req ActionRequest, needed int64) bool {
	perms, err := req.Session.State.UserChannelPermissions(req.InvokerID, req.ChannelID)
	if err != nil {
		e.log.Warn("Permission resolution failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.InvokerID),
			zap.Error(err),
		)
		return false
	}
	return perms&needed != 0 || perms&discordgo.PermissionAdministrator != 0
}

// channelMembers lists the members currently in the request's voice
// channel, excluding bots.
func (e *Executor) channelMembers(req ActionRequest) []*discordgo.Member {
	guild, err := req.Session.State.Guild(req.GuildID)
	if err != nil {
		return nil
	}
	var members []*discordgo.Member
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != req.ChannelID {
			continue
		}
		member, err := req.Session.State.Member(req.GuildID, vs.UserID)
		if err != nil {
			member, err = req.Session.GuildMember(req.GuildID, vs.UserID)
			if err != nil {
				continue
			}
		}
		if member.User != nil && member.User.Bot {
			continue
		}
		members = append(members, member)
	}
	return members
}
