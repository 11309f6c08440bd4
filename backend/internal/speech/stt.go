package speech

import (
	"bytes"
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"manga-bot/backend/internal/voice"
	"manga-bot/backend/pkg/logger"
)

// Transcriber sends utterances to the Whisper endpoint. A transcript the
// provider could not produce is the empty string with nil error; only
// genuine service failures surface as errors.
type Transcriber struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewTranscriber builds a transcriber over an OpenAI-compatible client.
func NewTranscriber(client *openai.Client, model string) *Transcriber {
	return &Transcriber{
		client: client,
		model:  model,
		log:    logger.Named("stt"),
	}
}

// Transcribe wraps PCM in a WAV container and requests a transcription.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) (string, error) {
	if t.client == nil || len(pcm) == 0 {
		return "", nil
	}

	wav := voice.WAVFromPCM(pcm, sampleRate, channels)
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		// Expected for background noise and non-speech
		return "", nil
	}
	t.log.Debug("Transcribed utterance",
		zap.Int("pcm_bytes", len(pcm)),
		zap.Int("text_len", len(text)),
	)
	return text, nil
}
