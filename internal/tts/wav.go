package tts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	wavSampleRate    = 24000
	wavNumChannels   = 1
	wavBitsPerSample = 16
	wavHeaderSize    = 44
	wavSubchunkSize  = 16
	wavAudioFormat   = 1
	wordsPerMinute   = 150
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func (f wavFormat) blockAlign() int {
	return int(f.NumChannels) * int(f.BitsPerSample) / 8
}

func defaultWAVFormat() wavFormat {
	return wavFormat{
		AudioFormat:   wavAudioFormat,
		NumChannels:   wavNumChannels,
		SampleRate:    wavSampleRate,
		BitsPerSample: wavBitsPerSample,
	}
}

func encodeWAV(f wavFormat, data []byte) []byte {
	blockAlign := f.blockAlign()
	byteRate := int(f.SampleRate) * blockAlign
	dataSize := len(data)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], wavSubchunkSize)
	binary.LittleEndian.PutUint16(buf[20:22], f.AudioFormat)
	binary.LittleEndian.PutUint16(buf[22:24], f.NumChannels)
	binary.LittleEndian.PutUint32(buf[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], f.BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], data)

	return buf
}

// SilentWAV returns a mono 16-bit PCM file of silence lasting seconds.
func SilentWAV(seconds float64) []byte {
	f := defaultWAVFormat()
	n := int(seconds*float64(f.SampleRate)) * f.blockAlign()
	return encodeWAV(f, make([]byte, n))
}

// decodeWAV walks the RIFF chunks and returns the fmt chunk and the PCM data.
func decodeWAV(b []byte) (wavFormat, []byte, error) {
	var f wavFormat
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return f, nil, errNotWAV
	}

	var (
		data    []byte
		haveFmt bool
	)
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		start := off + 8
		end := start + size
		if end > len(b) {
			end = len(b)
		}
		switch id {
		case "fmt ":
			if end-start < 16 {
				return f, nil, fmt.Errorf("short fmt chunk")
			}
			f.AudioFormat = binary.LittleEndian.Uint16(b[start : start+2])
			f.NumChannels = binary.LittleEndian.Uint16(b[start+2 : start+4])
			f.SampleRate = binary.LittleEndian.Uint32(b[start+4 : start+8])
			f.BitsPerSample = binary.LittleEndian.Uint16(b[start+14 : start+16])
			haveFmt = true
		case "data":
			data = append(data, b[start:end]...)
		}
		off = end + size%2
	}
	if !haveFmt {
		return f, nil, fmt.Errorf("missing fmt chunk")
	}
	return f, data, nil
}

// MergeWAV concatenates the PCM data of several WAV files under a single
// header. All parts must share the same sample format.
func MergeWAV(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errors.New("nothing to merge")
	}

	var (
		format wavFormat
		data   bytes.Buffer
	)
	for i, p := range parts {
		f, d, err := decodeWAV(p)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, fmt.Errorf("part %d: sample format %+v differs from %+v", i, f, format)
		}
		data.Write(d)
	}
	return encodeWAV(format, data.Bytes()), nil
}

// MergeMP3 joins MP3 streams frame-wise. ID3v2 tags after the first part are
// dropped so players do not stop at the second header.
func MergeMP3(parts [][]byte) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			p = stripID3(p)
		}
		buf.Write(p)
	}
	return buf.Bytes()
}

func stripID3(b []byte) []byte {
	if len(b) < 10 || string(b[0:3]) != "ID3" {
		return b
	}
	size := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
	end := 10 + size
	if b[5]&0x10 != 0 {
		end += 10
	}
	if end > len(b) {
		return nil
	}
	return b[end:]
}

func estimateSeconds(text string) float64 {
	words := len(strings.Fields(text))
	secs := float64(words) / wordsPerMinute * 60.0
	if secs < 0.5 {
		secs = 0.5
	}
	return secs
}
