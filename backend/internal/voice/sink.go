package voice

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// SinkConfig carries the segmentation tuning knobs. Defaults come from
// config; none of the exact values are load-bearing.
type SinkConfig struct {
	SilenceTimeout    time.Duration
	MinUtteranceBytes int
	MaxBufferBytes    int
	RMSThreshold      float64
}

// Segment is one speaker's utterance swapped out of the sink.
type Segment struct {
	SpeakerID string
	PCM       []byte
}

type speakerBuffer struct {
	data       []byte
	lastFrame  time.Time
	processing bool
}

// Sink accumulates per-speaker PCM. OnFrame runs on the audio receive
// goroutine and must stay cheap: it only appends to in-memory buffers
// under a single mutex. ReadySegments swaps a quiet buffer out atomically
// with respect to OnFrame so no bytes are lost between the two.
type Sink struct {
	mu      sync.Mutex
	cfg     SinkConfig
	policy  *SessionPolicy
	buffers map[string]*speakerBuffer
	closed  bool

	now func() time.Time // injectable clock for tests
}

// NewSink creates a sink bound to a session policy.
func NewSink(cfg SinkConfig, policy *SessionPolicy) *Sink {
	return &Sink{
		cfg:     cfg,
		policy:  policy,
		buffers: map[string]*speakerBuffer{},
		now:     time.Now,
	}
}

// OnFrame appends one decoded PCM frame for a speaker. Frames are dropped
// when the policy rejects the speaker. A buffer past the hard cap is
// force-flushed by treating it as immediately silent.
func (s *Sink) OnFrame(speakerID string, pcm []byte) {
	if len(pcm) == 0 || !s.policy.Admits(speakerID) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	buf, ok := s.buffers[speakerID]
	if !ok {
		buf = &speakerBuffer{}
		s.buffers[speakerID] = buf
	}

	if len(buf.data) >= s.cfg.MaxBufferBytes {
		// Zeroing the timestamp makes the next ReadySegments call treat
		// the buffer as silent and flush it
		buf.lastFrame = time.Time{}
		return
	}

	buf.data = append(buf.data, pcm...)
	buf.lastFrame = s.now()
}

// ReadySegments returns every utterance whose speaker has been silent past
// the timeout, swapping the buffer for an empty one and marking the
// speaker as processing. A processing speaker keeps accumulating new audio
// but is not returned again until FinishProcessing.
func (s *Sink) ReadySegments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	now := s.now()
	var ready []Segment
	for speakerID, buf := range s.buffers {
		if buf.processing || len(buf.data) == 0 {
			continue
		}
		if len(buf.data) < s.cfg.MinUtteranceBytes {
			// Too short to be an utterance; discard once it goes quiet
			if now.Sub(buf.lastFrame) > s.cfg.SilenceTimeout {
				buf.data = nil
			}
			continue
		}
		if now.Sub(buf.lastFrame) <= s.cfg.SilenceTimeout {
			continue
		}
		pcm := buf.data
		buf.data = nil
		buf.processing = true
		ready = append(ready, Segment{SpeakerID: speakerID, PCM: pcm})
	}
	return ready
}

// FinishProcessing releases a speaker for the next utterance.
func (s *Sink) FinishProcessing(speakerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.buffers[speakerID]; ok {
		buf.processing = false
	}
}

// BufferedBytes returns the current accumulation for one speaker.
func (s *Sink) BufferedBytes(speakerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.buffers[speakerID]; ok {
		return len(buf.data)
	}
	return 0
}

// LoudEnough gates a candidate segment on RMS loudness. Computed once per
// segment rather than per frame.
func (s *Sink) LoudEnough(pcm []byte) bool {
	return RMS(pcm) >= s.cfg.RMSThreshold
}

// Close drops every buffer; subsequent frames are ignored.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buffers = map[string]*speakerBuffer{}
}

// RMS computes root-mean-square over little-endian 16-bit signed samples.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		sumSq += float64(sample) * float64(sample)
	}
	return math.Sqrt(sumSq / float64(n))
}
