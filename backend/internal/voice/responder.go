package voice

import (
	"context"
	"encoding/binary"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// Synthesizer renders text to a temp PCM artifact (little-endian 16-bit
// mono at the reported sample rate) and returns its path. The responder
// owns deleting the artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, profile string) (path string, sampleRate int, err error)
}

// VoiceRotation is the fixed profile cycle for the change-voice command.
var VoiceRotation = []string{"english_female", "english", "arabic", "arabic_male"}

// Responder plays synthesized speech over a voice connection. Playback
// serializes per responder with barge-in semantics: a new Speak stops the
// current one rather than queueing behind it. Speak returns only after
// playback finishes or is interrupted, so callers can sequence follow-up
// actions after the reply was heard.
type Responder struct {
	mu         sync.Mutex
	playCancel context.CancelFunc
	playGen    uint64
	synth      Synthesizer
	voiceIdx   int
	log        *zap.Logger
}

// NewResponder creates a responder over a synthesizer.
func NewResponder(synth Synthesizer) *Responder {
	return &Responder{
		synth: synth,
		log:   logger.Named("responder"),
	}
}

// CurrentVoice returns the active profile name.
func (r *Responder) CurrentVoice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return VoiceRotation[r.voiceIdx]
}

// CycleVoice advances to the next profile and returns its name.
func (r *Responder) CycleVoice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voiceIdx = (r.voiceIdx + 1) % len(VoiceRotation)
	return VoiceRotation[r.voiceIdx]
}

// SetVoice selects a profile by name. Returns false for unknown names.
func (r *Responder) SetVoice(profile string) bool {
	for i, name := range VoiceRotation {
		if name == profile {
			r.mu.Lock()
			r.voiceIdx = i
			r.mu.Unlock()
			return true
		}
	}
	return false
}

// Stop interrupts the current playback, if any.
func (r *Responder) Stop() {
	r.mu.Lock()
	if r.playCancel != nil {
		r.playCancel()
		r.playCancel = nil
	}
	r.mu.Unlock()
}

// Speak synthesizes and plays text. An empty profile is inferred from the
// text script. An already-playing utterance is stopped first.
func (r *Responder) Speak(ctx context.Context, vc *discordgo.VoiceConnection, text, profile string) error {
	if text == "" || vc == nil {
		return nil
	}
	if profile == "" {
		profile = r.inferProfile(text)
	}

	r.mu.Lock()
	if r.playCancel != nil {
		// Barge-in: the newest reply wins
		r.playCancel()
	}
	playCtx, cancel := context.WithCancel(ctx)
	r.playCancel = cancel
	r.playGen++
	gen := r.playGen
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		// A newer Speak may have installed its own cancel by now; a
		// cancelled call only clears its own
		if r.playGen == gen {
			r.playCancel = nil
		}
		r.mu.Unlock()
	}()

	path, sampleRate, err := r.synth.Synthesize(playCtx, text, profile)
	if err != nil {
		return errors.NewSynthesisFailed(profile, err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.Warn("Failed to remove speech artifact", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	return r.play(playCtx, vc, path, sampleRate)
}

func (r *Responder) play(ctx context.Context, vc *discordgo.VoiceConnection, path string, sampleRate int) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.NewVoicePlaybackFailed(vc.GuildID, err)
	}
	samples := resampleMonoToStereo48k(raw, sampleRate)

	enc, err := NewEncoder()
	if err != nil {
		return errors.NewVoicePlaybackFailed(vc.GuildID, err)
	}

	if err := vc.Speaking(true); err != nil {
		return errors.NewVoicePlaybackFailed(vc.GuildID, err)
	}
	defer vc.Speaking(false)

	frame := FrameSamples * Channels
	for off := 0; off < len(samples); off += frame {
		chunk := samples[off:]
		if len(chunk) >= frame {
			chunk = chunk[:frame]
		} else {
			// Pad the tail so the encoder always sees a full frame
			padded := make([]int16, frame)
			copy(padded, chunk)
			chunk = padded
		}
		packet, err := enc.Encode(chunk)
		if err != nil {
			return errors.NewVoicePlaybackFailed(vc.GuildID, err)
		}
		out := make([]byte, len(packet))
		copy(out, packet)
		select {
		case <-ctx.Done():
			// Interrupted by barge-in or teardown; not an error
			return nil
		case vc.OpusSend <- out:
		}
	}
	return nil
}

// inferProfile picks an Arabic voice when a large share of the text is
// non-ASCII, keeping the current rotation choice otherwise.
func (r *Responder) inferProfile(text string) string {
	total := utf8.RuneCountInString(text)
	if total > 0 {
		nonASCII := 0
		for _, ch := range text {
			if ch > 127 {
				nonASCII++
			}
		}
		if float64(nonASCII)/float64(total) > 0.3 {
			return "arabic"
		}
	}
	return r.CurrentVoice()
}

// resampleMonoToStereo48k converts little-endian 16-bit mono PCM at
// srcRate into interleaved 48kHz stereo samples using sample-and-hold.
// Synthesis output is speech; fidelity loss from the naive resample is
// inaudible over Opus.
func resampleMonoToStereo48k(raw []byte, srcRate int) []int16 {
	n := len(raw) / 2
	if n == 0 || srcRate <= 0 {
		return nil
	}
	mono := make([]int16, n)
	for i := 0; i < n; i++ {
		mono[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	outN := n * SampleRate / srcRate
	out := make([]int16, 0, outN*Channels)
	for i := 0; i < outN; i++ {
		src := i * srcRate / SampleRate
		if src >= n {
			src = n - 1
		}
		out = append(out, mono[src], mono[src])
	}
	return out
}
