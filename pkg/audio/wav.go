// Package audio decodes extracted WAV audio into the mono 16 kHz float32
// sample buffers the language model consumes, and encodes PCM back into WAV
// containers for tests and fixtures.
//
// Only the format the extraction stage produces is supported natively —
// RIFF/WAVE with 16-bit signed little-endian PCM. Stereo input is downmixed
// and off-rate input is resampled with linear interpolation so that minor
// extractor misconfiguration does not abort a run.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ModelSampleRate is the sample rate the downstream models expect.
const ModelSampleRate = 16000

const (
	bitsPerSample = 16
	headerSize    = 44
)

// ErrNotWAV is returned when the input does not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// ErrUnsupportedFormat is returned for WAV files that are not 16-bit PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported WAV format (want 16-bit PCM)")

// DecodeWAV reads a complete WAV stream from r and returns its content as
// mono float32 samples at [ModelSampleRate], normalised to [-1, 1]. Stereo
// input is downmixed by averaging; other channel counts are rejected.
func DecodeWAV(r io.Reader) ([]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav: %w", err)
	}
	if len(data) < headerSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		channels   int
		sampleRate int
		pcm        []byte
		sawFmt     bool
	)

	// Walk the chunk list; fmt and data may be separated by e.g. LIST chunks
	// that ffmpeg emits.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// Truncated chunk: tolerate a short final data chunk, reject others.
			if id == "data" && body < len(data) {
				size = len(data) - body
			} else {
				break
			}
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, ErrUnsupportedFormat
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != bitsPerSample {
				return nil, ErrUnsupportedFormat
			}
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word aligned.
		off = body + size + size%2
	}

	if !sawFmt || pcm == nil {
		return nil, ErrNotWAV
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, sampleRate)
	}

	samples := pcmToFloat32(pcm, channels)
	if sampleRate != ModelSampleRate {
		samples = Resample(samples, sampleRate, ModelSampleRate)
	}
	return samples, nil
}

// DecodeFile opens and decodes the WAV file at path. See [DecodeWAV].
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// pcmToFloat32 converts 16-bit signed little-endian PCM into float32 samples
// in [-1, 1], averaging L+R pairs when channels is 2.
func pcmToFloat32(pcm []byte, channels int) []float32 {
	n := len(pcm) / 2
	if channels == 2 {
		frames := n / 2
		out := make([]float32, frames)
		for i := range frames {
			l := int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2]))
			r := int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4]))
			out[i] = float32(int32(l)+int32(r)) / 2 / 32768
		}
		return out
	}
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(s) / 32768
	}
	return out
}

// Resample converts mono float32 samples from srcRate to dstRate using linear
// interpolation. Returns the input unchanged when the rates already match.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}
	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))
		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, headerSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
