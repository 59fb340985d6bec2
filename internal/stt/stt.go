// Package stt turns recorded speech back into text for voice practice.
package stt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrNoSpeech = errors.New("no speech detected in audio")

const (
	EncodingLinear16 = "LINEAR16"
	EncodingFLAC     = "FLAC"
	EncodingOggOpus  = "OGG_OPUS"
	EncodingWebmOpus = "WEBM_OPUS"
	EncodingMP3      = "MP3"
	EncodingMP4      = "MP4"
)

var extensionEncodings = map[string]AudioConfig{
	".wav":  {Encoding: EncodingLinear16},
	".flac": {Encoding: EncodingFLAC},
	".ogg":  {Encoding: EncodingOggOpus, SampleRate: 48000},
	".opus": {Encoding: EncodingOggOpus, SampleRate: 48000},
	".webm": {Encoding: EncodingWebmOpus, SampleRate: 48000},
	".mp3":  {Encoding: EncodingMP3},
	".m4a":  {Encoding: EncodingMP4},
	".mp4":  {Encoding: EncodingMP4},
}

// AudioConfig describes an uploaded recording. SampleRate 0 lets the service
// read it from the file header.
type AudioConfig struct {
	Encoding   string
	SampleRate int
	Language   string
	Filename   string
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, cfg AudioConfig) (string, error)
}

// ConfigForFile derives the audio config from the uploaded file's extension.
func ConfigForFile(filename, language string) (AudioConfig, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	cfg, ok := extensionEncodings[ext]
	if !ok {
		return AudioConfig{}, fmt.Errorf("unsupported audio file type %q", ext)
	}
	cfg.Language = language
	cfg.Filename = filepath.Base(filename)
	return cfg, nil
}
