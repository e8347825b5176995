package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WAVFormat describes the header fields the decoder contract (spec.md
// §4.4) cares about: whether the buffer is already 16-bit/16kHz/mono PCM,
// or needs resampling/requantizing before it reaches the decoder.
type WAVFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Is16MonoPCM reports whether the format already matches the decoder's
// required input: 16-bit signed, 16 kHz, mono.
func (f WAVFormat) Is16MonoPCM() bool {
	return f.SampleRate == 16000 && f.Channels == 1 && f.BitsPerSample == 16
}

// EncodeWAV frames raw little-endian 16-bit PCM bytes (as produced by the
// command listener's bracketed capture) as a WAV buffer.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	totalLen := 44 + len(pcm)
	buf := make([]byte, totalLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	blockAlign := channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)

	return buf
}

// SamplesToWAV encodes float32 PCM samples normalized to [-1, 1] as a
// 16-bit mono WAV byte slice.
func SamplesToWAV(samples []float32, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		clamped := max(float32(-1.0), min(float32(1.0), s))
		val := int16(clamped * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(val))
	}
	return EncodeWAV(pcm, sampleRate, 1)
}

// DecodeWAV parses a WAV buffer's "fmt " chunk and returns the raw PCM
// payload from its "data" chunk alongside the declared format. It walks
// chunks generically so chunks preceding "data" (e.g. "LIST") don't trip it
// up, matching real-world WAV files from arecord/sox.
func DecodeWAV(buf []byte) ([]byte, WAVFormat, error) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return nil, WAVFormat{}, fmt.Errorf("audio: not a RIFF/WAVE buffer")
	}

	var format WAVFormat
	var haveFormat bool
	offset := 12
	for offset+8 <= len(buf) {
		id := string(buf[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(buf[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(buf) {
			break
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVFormat{}, fmt.Errorf("audio: fmt chunk too small (%d bytes)", size)
			}
			chunk := buf[body : body+size]
			format = WAVFormat{
				Channels:      int(binary.LittleEndian.Uint16(chunk[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(chunk[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(chunk[14:16])),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, WAVFormat{}, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			return buf[body : body+size], format, nil
		}

		offset = body + size
		if size%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	return nil, WAVFormat{}, fmt.Errorf("audio: no data chunk found")
}

// NormalizeWAV decodes buf and returns float32 samples resampled and
// requantized (if needed) to 16 kHz mono, satisfying the speech decoder's
// input contract regardless of the source format.
func NormalizeWAV(buf []byte) ([]float32, error) {
	pcm, format, err := DecodeWAV(buf)
	if err != nil {
		return nil, err
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit PCM supported)", format.BitsPerSample)
	}

	samples := decodePCM(pcm)
	if format.Channels == 2 {
		samples = downmixStereo(samples)
	} else if format.Channels > 2 {
		return nil, fmt.Errorf("audio: unsupported channel count %d", format.Channels)
	}

	return Resample(samples, format.SampleRate, 16000), nil
}

func downmixStereo(interleaved []float32) []float32 {
	mono := make([]float32, len(interleaved)/2)
	for i := range mono {
		mono[i] = (interleaved[2*i] + interleaved[2*i+1]) / 2
	}
	return mono
}
