package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// Transcriber converts one utterance of PCM into text. An empty transcript
// with nil error is the expected no-speech outcome.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) (string, error)
}

// Chat produces the free-form reply for utterances that are not commands.
// It never errors; total provider failure yields an apology string.
type Chat interface {
	VoiceResponse(ctx context.Context, username, speech string) string
}

// ManagerConfig bundles the session tuning knobs.
type ManagerConfig struct {
	ChannelName       string
	Sink              SinkConfig
	SegmentTick       time.Duration
	KeepAliveInterval time.Duration
	EnforceInterval   time.Duration
	RejoinDelay       time.Duration
	TimeoutDefaultMin int
	TimeoutCapMin     int
}

// Session is one guild's live voice association: connection, sink, and the
// background loops feeding it. Exactly one per guild at a time.
type Session struct {
	GuildID   string
	ChannelID string

	vc     *discordgo.VoiceConnection
	sink   *Sink
	policy *SessionPolicy
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Manager owns every guild's voice session plus the per-guild policies and
// manual-disconnect flags that outlive individual sessions.
type Manager struct {
	dg        *discordgo.Session
	cfg       ManagerConfig
	stt       Transcriber
	responder *Responder
	executor  *Executor
	chat      Chat

	mu       sync.RWMutex
	sessions map[string]*Session
	policies map[string]*SessionPolicy
	manual   map[string]struct{}

	log *zap.Logger
}

// NewManager wires the pipeline components together.
func NewManager(dg *discordgo.Session, cfg ManagerConfig, stt Transcriber, responder *Responder, chat Chat) *Manager {
	return &Manager{
		dg:        dg,
		cfg:       cfg,
		stt:       stt,
		responder: responder,
		executor:  NewExecutor(),
		chat:      chat,
		sessions:  map[string]*Session{},
		policies:  map[string]*SessionPolicy{},
		manual:    map[string]struct{}{},
		log:       logger.Named("voice"),
	}
}

// Policy returns the guild's listening policy, creating it lazily. The
// policy survives session teardown so ignore lists persist across rejoins.
func (m *Manager) Policy(guildID string) *SessionPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[guildID]
	if !ok {
		p = NewSessionPolicy()
		m.policies[guildID] = p
	}
	return p
}

// Responder exposes the TTS responder for voice-control commands.
func (m *Manager) Responder() *Responder {
	return m.responder
}

// Connected reports whether the guild has an active session.
func (m *Manager) Connected(guildID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[guildID]
	return ok
}

// Connection returns the guild's live voice connection, or nil.
func (m *Manager) Connection(guildID string) *discordgo.VoiceConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[guildID]; ok {
		return sess.vc
	}
	return nil
}

// ManualDisconnect reports whether the guild deliberately left voice,
// which suppresses auto-rejoin.
func (m *Manager) ManualDisconnect(guildID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.manual[guildID]
	return ok
}

// Join connects to the guild's designated voice channel, creating the
// channel when it does not exist, and starts the pipeline loops.
func (m *Manager) Join(guildID string) error {
	m.mu.RLock()
	_, exists := m.sessions[guildID]
	m.mu.RUnlock()
	if exists {
		return nil
	}

	channelID, err := m.ensureChannel(guildID)
	if err != nil {
		return err
	}

	vc, err := m.dg.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return errors.NewVoiceJoinFailed(guildID, channelID, err)
	}

	policy := m.Policy(guildID)
	sink := NewSink(m.cfg.Sink, policy)
	ctx, cancel := context.WithCancel(context.Background())

	sess := &Session{
		GuildID:   guildID,
		ChannelID: channelID,
		vc:        vc,
		sink:      sink,
		policy:    policy,
		cancel:    cancel,
	}

	m.mu.Lock()
	if _, raced := m.sessions[guildID]; raced {
		m.mu.Unlock()
		cancel()
		vc.Disconnect()
		return nil
	}
	m.sessions[guildID] = sess
	delete(m.manual, guildID)
	m.mu.Unlock()

	sess.wg.Add(3)
	go m.receiveLoop(ctx, sess)
	go m.segmentLoop(ctx, sess)
	go m.keepAliveLoop(ctx, sess)

	m.log.Info("Joined voice channel",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
	)
	return nil
}

// Leave tears the guild's session down deliberately, suppressing
// auto-rejoin. Leaving with no active session is a no-op.
func (m *Manager) Leave(guildID string) bool {
	return m.teardown(guildID, true)
}

func (m *Manager) teardown(guildID string, manual bool) bool {
	m.mu.Lock()
	sess, ok := m.sessions[guildID]
	if !ok {
		if manual {
			m.manual[guildID] = struct{}{}
		}
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, guildID)
	if manual {
		m.manual[guildID] = struct{}{}
	}
	m.mu.Unlock()

	m.responder.Stop()
	sess.cancel()
	sess.sink.Close()
	if err := sess.vc.Disconnect(); err != nil {
		m.log.Warn("Voice disconnect failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	sess.wg.Wait()

	m.log.Info("Left voice channel", zap.String("guild_id", guildID), zap.Bool("manual", manual))
	return true
}

// Close tears down every session; used on shutdown.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.teardown(id, true)
	}
}

// Say speaks text in the guild's session with an optional explicit profile.
func (m *Manager) Say(ctx context.Context, guildID, text, profile string) error {
	vc := m.Connection(guildID)
	if vc == nil {
		return errors.NewVoiceNotConnected(guildID)
	}
	return m.responder.Speak(ctx, vc, text, profile)
}

// ensureChannel finds the designated voice channel, creating it if absent.
func (m *Manager) ensureChannel(guildID string) (string, error) {
	guild, err := m.dg.State.Guild(guildID)
	if err != nil {
		return "", errors.NewDiscordGuildNotFound(guildID)
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildVoice && ch.Name == m.cfg.ChannelName {
			return ch.ID, nil
		}
	}
	ch, err := m.dg.GuildChannelCreate(guildID, m.cfg.ChannelName, discordgo.ChannelTypeGuildVoice)
	if err != nil {
		return "", errors.NewVoiceJoinFailed(guildID, "", err)
	}
	m.log.Info("Created designated voice channel",
		zap.String("guild_id", guildID),
		zap.String("channel_id", ch.ID),
	)
	return ch.ID, nil
}

// receiveLoop decodes incoming Opus packets and feeds the sink. SSRC to
// user mapping comes from speaking updates on the connection.
func (m *Manager) receiveLoop(ctx context.Context, sess *Session) {
	defer sess.wg.Done()

	var ssrcMu sync.RWMutex
	ssrcToUser := map[uint32]string{}
	sess.vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		ssrcMu.Lock()
		ssrcToUser[uint32(vs.SSRC)] = vs.UserID
		ssrcMu.Unlock()
	})

	decoders := map[uint32]*Decoder{}
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-sess.vc.OpusRecv:
			if !ok {
				return
			}
			dec, ok := decoders[pkt.SSRC]
			if !ok {
				var err error
				dec, err = NewDecoder()
				if err != nil {
					m.log.Error("Failed to create opus decoder", zap.Error(err))
					continue
				}
				decoders[pkt.SSRC] = dec
			}
			pcm, err := dec.Decode(pkt.Opus)
			if err != nil {
				m.log.Debug("Opus decode error", zap.Uint32("ssrc", pkt.SSRC), zap.Error(err))
				continue
			}
			ssrcMu.RLock()
			userID := ssrcToUser[pkt.SSRC]
			ssrcMu.RUnlock()
			if userID == "" {
				continue
			}
			sess.sink.OnFrame(userID, pcm)
		}
	}
}

// segmentLoop polls the sink and hands each ready utterance to its own
// goroutine so one slow transcription never blocks another speaker.
func (m *Manager) segmentLoop(ctx context.Context, sess *Session) {
	defer sess.wg.Done()

	ticker := time.NewTicker(m.cfg.SegmentTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, seg := range sess.sink.ReadySegments() {
				go m.handleSegment(ctx, sess, seg)
			}
		}
	}
}

func (m *Manager) handleSegment(ctx context.Context, sess *Session, seg Segment) {
	defer sess.sink.FinishProcessing(seg.SpeakerID)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Segment handler panicked",
				zap.String("guild_id", sess.GuildID),
				zap.Any("panic", r),
			)
		}
	}()

	if !sess.sink.LoudEnough(seg.PCM) {
		return
	}

	text, err := m.stt.Transcribe(ctx, seg.PCM, SampleRate, Channels)
	if err != nil {
		m.log.Warn("Transcription failed",
			zap.String("guild_id", sess.GuildID),
			zap.Error(errors.NewTranscriptionFailed(len(seg.PCM), err)),
		)
		return
	}
	if text == "" || !HasWakeWord(text) {
		return
	}

	m.log.Info("Voice input",
		zap.String("guild_id", sess.GuildID),
		zap.String("speaker_id", seg.SpeakerID),
		zap.String("text", text),
	)

	rest := StripWakeWord(text)
	if rest == "" {
		m.speak(ctx, sess, "Yes? What do you need?")
		return
	}

	cmd := Parse(rest, m.cfg.TimeoutDefaultMin, m.cfg.TimeoutCapMin)
	switch cmd.Kind {
	case CommandLeave:
		m.speak(ctx, sess, "Goodbye!")
		m.Leave(sess.GuildID)
	case CommandChangeVoice:
		next := m.responder.CycleVoice()
		m.speak(ctx, sess, fmt.Sprintf("Voice changed to %s!", next))
	case CommandMute, CommandUnmute, CommandKick, CommandTimeout:
		reply := m.executor.Execute(ActionRequest{
			Session:   m.dg,
			GuildID:   sess.GuildID,
			ChannelID: sess.ChannelID,
			InvokerID: seg.SpeakerID,
		}, cmd)
		m.speak(ctx, sess, reply)
	default:
		reply := m.chat.VoiceResponse(ctx, m.speakerName(sess.GuildID, seg.SpeakerID), rest)
		m.speak(ctx, sess, reply)
	}
}

func (m *Manager) speak(ctx context.Context, sess *Session, text string) {
	if err := m.responder.Speak(ctx, sess.vc, text, ""); err != nil {
		m.log.Warn("Spoken reply failed",
			zap.String("guild_id", sess.GuildID),
			zap.Error(err),
		)
	}
}

func (m *Manager) speakerName(guildID, userID string) string {
	if member, err := m.dg.State.Member(guildID, userID); err == nil {
		return DisplayName(member)
	}
	if user, err := m.dg.User(userID); err == nil {
		return user.Username
	}
	return "someone"
}
