package voice

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

// blockingSynth parks every call until its context is cancelled, so tests
// can hold multiple Speak calls in flight.
type blockingSynth struct {
	started chan string
}

func (s *blockingSynth) Synthesize(ctx context.Context, text, profile string) (string, int, error) {
	s.started <- text
	<-ctx.Done()
	return "", 0, ctx.Err()
}

func TestVoiceRotationCycles(t *testing.T) {
	r := NewResponder(nil)
	assert.Equal(t, "english_female", r.CurrentVoice())
	assert.Equal(t, "english", r.CycleVoice())
	assert.Equal(t, "arabic", r.CycleVoice())
	assert.Equal(t, "arabic_male", r.CycleVoice())
	assert.Equal(t, "english_female", r.CycleVoice())
}

func TestInferProfileByScript(t *testing.T) {
	r := NewResponder(nil)
	assert.Equal(t, "arabic", r.inferProfile("مرحبا كيف الحال"))
	assert.Equal(t, "english_female", r.inferProfile("hello there"))
	// Mostly ASCII with a stray accent keeps the rotation voice
	assert.Equal(t, "english_female", r.inferProfile("hello café and good morning everyone"))
}

func TestResampleMonoToStereo48k(t *testing.T) {
	// 24kHz mono doubles to 48kHz and duplicates to stereo: 4x samples
	raw := []byte{0x01, 0x00, 0x02, 0x00} // two samples
	out := resampleMonoToStereo48k(raw, 24000)
	assert.Len(t, out, 8)
	assert.Equal(t, int16(1), out[0])
	assert.Equal(t, int16(1), out[1])

	// 48kHz mono only widens to stereo
	out = resampleMonoToStereo48k(raw, 48000)
	assert.Len(t, out, 4)

	assert.Nil(t, resampleMonoToStereo48k(nil, 24000))
	assert.Nil(t, resampleMonoToStereo48k(raw, 0))
}

func TestStopReachesNewestSpeakAfterBargeIn(t *testing.T) {
	synth := &blockingSynth{started: make(chan string)}
	r := NewResponder(synth)
	vc := &discordgo.VoiceConnection{}

	doneFirst := make(chan struct{})
	go func() {
		r.Speak(context.Background(), vc, "first", "english")
		close(doneFirst)
	}()
	<-synth.started

	doneSecond := make(chan struct{})
	go func() {
		r.Speak(context.Background(), vc, "second", "english")
		close(doneSecond)
	}()
	<-synth.started

	// The barge-in cancels the first call, whose cleanup must not
	// disarm the second call's cancel
	select {
	case <-doneFirst:
	case <-time.After(time.Second):
		t.Fatal("first Speak was not cancelled by the barge-in")
	}

	r.Stop()
	select {
	case <-doneSecond:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the in-flight Speak")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	m := NewManager(nil, ManagerConfig{RejoinDelay: time.Second}, nil, NewResponder(nil), nil)

	// No active session: leave is a no-op that still records the intent
	assert.False(t, m.Leave("guild-1"))
	assert.True(t, m.ManualDisconnect("guild-1"))
	assert.False(t, m.Leave("guild-1"))
	assert.False(t, m.Connected("guild-1"))
}

func TestPolicySurvivesAcrossSessions(t *testing.T) {
	m := NewManager(nil, ManagerConfig{}, nil, NewResponder(nil), nil)

	p := m.Policy("guild-1")
	p.Block("noisy-user")

	// Same guild returns the same policy instance
	assert.True(t, m.Policy("guild-1").IsBlocked("noisy-user"))
	assert.False(t, m.Policy("guild-2").IsBlocked("noisy-user"))
}
