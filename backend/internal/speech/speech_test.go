package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manga-bot/backend/pkg/errors"
)

func TestSynthesizeWithoutClient(t *testing.T) {
	s := NewSynthesizer(nil, "tts-1", t.TempDir())

	_, _, err := s.Synthesize(context.Background(), "hello there", "english")
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeSpeech))
}

func TestTranscribeWithoutClient(t *testing.T) {
	tr := NewTranscriber(nil, "whisper-1")

	text, err := tr.Transcribe(context.Background(), []byte{0x01, 0x00}, 48000, 2)
	require.NoError(t, err)
	assert.Empty(t, text)
}
