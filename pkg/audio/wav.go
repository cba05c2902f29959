// Package audio provides the PCM building blocks shared by the pipeline:
// a minimal RIFF/WAVE codec, sample-domain DSP helpers and a WSOLA
// time-stretcher. All processing happens on mono float64 sample slices in
// the range [-1, 1]; files are read and written as 16-bit little-endian PCM.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Clip is a mono audio buffer with its sample rate.
type Clip struct {
	Samples []float64
	Rate    int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// ErrNotWAV is returned when a file does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// ReadWAV decodes a PCM WAV file into a mono clip. Multi-channel input is
// downmixed by averaging the channels. Supported sample formats are 16-bit
// integer and 32-bit float PCM, which covers everything this pipeline
// produces itself or receives from ffmpeg and the synthesis workers.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: open wav: %w", err)
	}
	defer f.Close()
	c, err := DecodeWAV(f)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return c, nil
}

// DecodeWAV decodes a PCM WAV stream into a mono clip. See ReadWAV.
func DecodeWAV(r io.Reader) (Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Clip{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		haveFmt    bool
	)

	// Walk chunks until the data chunk. Unknown chunks (LIST, fact, cue)
	// are skipped; chunk payloads are word-aligned.
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Clip{}, errors.New("missing data chunk")
			}
			return Clip{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Clip{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			format = binary.LittleEndian.Uint16(buf[0:2])
			channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(buf[14:16]))
			// WAVE_FORMAT_EXTENSIBLE carries the real format in the
			// extension's subformat GUID; the first two GUID bytes
			// mirror the plain format tag.
			if format == 0xFFFE && size >= 40 {
				format = binary.LittleEndian.Uint16(buf[24:26])
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, errors.New("data chunk before fmt chunk")
			}
			if channels <= 0 || sampleRate <= 0 {
				return Clip{}, fmt.Errorf("invalid format: %d channels at %d Hz", channels, sampleRate)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return Clip{}, fmt.Errorf("read data chunk: %w", err)
			}
			samples, err := decodeSamples(data, format, bitDepth, channels)
			if err != nil {
				return Clip{}, err
			}
			return Clip{Samples: samples, Rate: sampleRate}, nil
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Clip{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

func decodeSamples(data []byte, format uint16, bitDepth, channels int) ([]float64, error) {
	const (
		formatPCM   = 1
		formatFloat = 3
	)
	var bytesPer int
	switch {
	case format == formatPCM && bitDepth == 16:
		bytesPer = 2
	case format == formatFloat && bitDepth == 32:
		bytesPer = 4
	default:
		return nil, fmt.Errorf("unsupported sample format %d/%d-bit", format, bitDepth)
	}

	frameSize := bytesPer * channels
	frames := len(data) / frameSize
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			off := i*frameSize + ch*bytesPer
			if bytesPer == 2 {
				s := int16(binary.LittleEndian.Uint16(data[off : off+2]))
				sum += float64(s) / 32768
			} else {
				bits := binary.LittleEndian.Uint32(data[off : off+4])
				sum += float64(math.Float32frombits(bits))
			}
		}
		out[i] = sum / float64(channels)
	}
	return out, nil
}

// WriteWAV writes a mono clip as a 16-bit PCM WAV file. Samples outside
// [-1, 1] are clamped.
func WriteWAV(path string, c Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav: %w", err)
	}
	if err := EncodeWAV(f, c); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close wav: %w", err)
	}
	return nil
}

// EncodeWAV writes a mono clip to w as 16-bit PCM WAV.
func EncodeWAV(w io.Writer, c Clip) error {
	if c.Rate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.Rate)
	}
	dataSize := len(c.Samples) * 2
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], 1) // mono
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(c.Rate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(c.Rate*2)) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 2)                // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 16)               // bit depth
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, dataSize)
	for i, s := range c.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}
