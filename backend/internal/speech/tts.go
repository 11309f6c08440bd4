package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// pcmSampleRate is the provider's PCM output rate: 16-bit mono 24kHz.
const pcmSampleRate = 24000

// profileVoices maps the rotation profile names onto provider voices.
var profileVoices = map[string]openai.SpeechVoice{
	"english_female": openai.VoiceNova,
	"english":        openai.VoiceOnyx,
	"arabic":         openai.VoiceShimmer,
	"arabic_male":    openai.VoiceAlloy,
}

// Synthesizer renders speech to temp PCM artifacts. The caller owns
// deleting the returned file.
type Synthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	tmpDir string
	log    *zap.Logger
}

// NewSynthesizer builds a synthesizer writing artifacts into tmpDir
// (the OS temp dir when empty).
func NewSynthesizer(client *openai.Client, model, tmpDir string) *Synthesizer {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Synthesizer{
		client: client,
		model:  openai.SpeechModel(model),
		tmpDir: tmpDir,
		log:    logger.Named("tts"),
	}
}

// Synthesize generates speech for the text in the given profile voice and
// returns the artifact path plus its sample rate.
func (s *Synthesizer) Synthesize(ctx context.Context, text, profile string) (string, int, error) {
	if s.client == nil {
		return "", 0, errors.NewSynthesisFailed(profile, fmt.Errorf("no speech provider configured"))
	}
	voiceName, ok := profileVoices[profile]
	if !ok {
		voiceName = openai.VoiceNova
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voiceName,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return "", 0, err
	}
	defer resp.Close()

	path := filepath.Join(s.tmpDir, "speech_"+uuid.NewString()+".pcm")
	out, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", 0, err
	}

	s.log.Debug("Synthesized speech",
		zap.String("profile", profile),
		zap.Int("text_len", len(text)),
		zap.String("path", path),
	)
	return path, pcmSampleRate, nil
}
