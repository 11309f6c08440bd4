package voice

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSinkConfig() SinkConfig {
	return SinkConfig{
		SilenceTimeout:    time.Second,
		MinUtteranceBytes: 100,
		MaxBufferBytes:    1000,
		RMSThreshold:      150,
	}
}

// fakeClock lets tests move the sink's notion of now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSink(cfg SinkConfig) (*Sink, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewSink(cfg, NewSessionPolicy())
	s.now = clock.now
	return s, clock
}

func loudPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(8000)))
	}
	return pcm
}

func TestSinkAccumulatesWithoutLoss(t *testing.T) {
	s, _ := newTestSink(testSinkConfig())

	total := 0
	for i := 0; i < 7; i++ {
		frame := loudPCM(40)
		s.OnFrame("alice", frame)
		total += len(frame)
	}
	assert.Equal(t, total, s.BufferedBytes("alice"))
}

func TestSinkSegmentRequiresSilenceAndMinSize(t *testing.T) {
	s, clock := newTestSink(testSinkConfig())

	s.OnFrame("alice", loudPCM(200))

	// Still within the silence window
	assert.Empty(t, s.ReadySegments())

	clock.advance(1500 * time.Millisecond)
	segs := s.ReadySegments()
	require.Len(t, segs, 1)
	assert.Equal(t, "alice", segs[0].SpeakerID)
	assert.Len(t, segs[0].PCM, 200)
	assert.Zero(t, s.BufferedBytes("alice"))
}

func TestSinkShortBufferDiscardedAsNoise(t *testing.T) {
	s, clock := newTestSink(testSinkConfig())

	s.OnFrame("alice", loudPCM(40)) // below MinUtteranceBytes
	clock.advance(2 * time.Second)

	assert.Empty(t, s.ReadySegments())
	assert.Zero(t, s.BufferedBytes("alice"))
}

func TestSinkProcessingMarkExcludesSpeaker(t *testing.T) {
	s, clock := newTestSink(testSinkConfig())

	s.OnFrame("alice", loudPCM(200))
	clock.advance(2 * time.Second)
	require.Len(t, s.ReadySegments(), 1)

	// New audio accumulates but is not returned while processing
	s.OnFrame("alice", loudPCM(200))
	clock.advance(2 * time.Second)
	assert.Empty(t, s.ReadySegments())

	s.FinishProcessing("alice")
	segs := s.ReadySegments()
	require.Len(t, segs, 1)
	assert.Len(t, segs[0].PCM, 200)
}

func TestSinkForceFlushAtHardCap(t *testing.T) {
	cfg := testSinkConfig()
	s, _ := newTestSink(cfg)

	// Fill past the cap; the overflowing buffer becomes immediately silent
	for i := 0; i < 6; i++ {
		s.OnFrame("alice", loudPCM(200))
	}
	assert.Equal(t, 1000, s.BufferedBytes("alice"))

	// No clock advance needed: the force flush zeroed the last-frame time
	s.OnFrame("alice", loudPCM(200))
	segs := s.ReadySegments()
	require.Len(t, segs, 1)
	assert.Len(t, segs[0].PCM, 1000)
}

func TestSinkPolicyFilters(t *testing.T) {
	policy := NewSessionPolicy()
	s := NewSink(testSinkConfig(), policy)

	policy.SetListening(false)
	s.OnFrame("alice", loudPCM(40))
	assert.Zero(t, s.BufferedBytes("alice"))

	policy.SetListening(true)
	policy.Claim("bob")
	s.OnFrame("alice", loudPCM(40))
	s.OnFrame("bob", loudPCM(40))
	assert.Zero(t, s.BufferedBytes("alice"))
	assert.Equal(t, 40, s.BufferedBytes("bob"))

	policy.Reset()
	policy.Block("alice")
	s.OnFrame("alice", loudPCM(40))
	assert.Zero(t, s.BufferedBytes("alice"))

	policy.Unblock("alice")
	s.OnFrame("alice", loudPCM(40))
	assert.Equal(t, 40, s.BufferedBytes("alice"))
}

func TestSinkCloseDropsBuffers(t *testing.T) {
	s, clock := newTestSink(testSinkConfig())

	s.OnFrame("alice", loudPCM(200))
	s.Close()

	clock.advance(2 * time.Second)
	assert.Empty(t, s.ReadySegments())

	s.OnFrame("alice", loudPCM(200))
	assert.Zero(t, s.BufferedBytes("alice"))
}

func TestRMSLoudnessGate(t *testing.T) {
	s, _ := newTestSink(testSinkConfig())

	assert.True(t, s.LoudEnough(loudPCM(200)))

	quiet := make([]byte, 200) // all zero samples
	assert.False(t, s.LoudEnough(quiet))

	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 8000, RMS(loudPCM(200)), 1)
}
