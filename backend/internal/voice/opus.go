package voice

import (
	"encoding/binary"

	"github.com/hraban/opus"
)

const (
	// SampleRate is the Discord voice sample rate.
	SampleRate = 48000
	// Channels is the Discord voice channel count.
	Channels = 2
	// FrameSamples is samples per channel in one 20ms frame.
	FrameSamples = 960
)

// Decoder turns incoming Opus packets into little-endian PCM bytes. One
// decoder per SSRC; Opus decoders carry packet-loss state per stream.
type Decoder struct {
	dec *opus.Decoder
	pcm []int16
}

// NewDecoder creates a 48kHz stereo decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		dec: dec,
		pcm: make([]int16, FrameSamples*Channels),
	}, nil
}

// Decode returns the PCM bytes for one packet.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n*Channels*2)
	for i := 0; i < n*Channels; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(d.pcm[i]))
	}
	return out, nil
}

// Encoder turns PCM samples into Opus packets for playback.
type Encoder struct {
	enc *opus.Encoder
	buf []byte
}

// NewEncoder creates a 48kHz stereo encoder tuned for speech.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: enc, buf: make([]byte, 4000)}, nil
}

// Encode packs one 20ms frame (FrameSamples per channel) into an Opus
// packet. The returned slice is only valid until the next call.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, err
	}
	return e.buf[:n], nil
}
