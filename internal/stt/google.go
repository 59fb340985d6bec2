package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"langtutor/internal/provider"
)

const googleName = "google_cloud"

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

var _ Transcriber = (*GoogleTranscriber)(nil)

// GoogleTranscriber uses Cloud Speech-to-Text synchronous recognition.
type GoogleTranscriber struct {
	client recognizer
}

func NewGoogleTranscriber(ctx context.Context, credentialsPath string) (*GoogleTranscriber, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleTranscriber{client: client}, nil
}

func (g *GoogleTranscriber) Name() string {
	return googleName
}

func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte, cfg AudioConfig) (_ string, err error) {
	start := time.Now()
	defer func() { provider.Observe("stt", googleName, "transcribe", start, err) }()

	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	encoding, err := getAudioEncoding(cfg.Encoding)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(cfg.SampleRate),
			LanguageCode:               cfg.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", provider.Wrap(googleName, "transcribe", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case EncodingLinear16, "WAV":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case EncodingFLAC:
		return speechpb.RecognitionConfig_FLAC, nil
	case EncodingOggOpus:
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case EncodingWebmOpus:
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding for google speech: %s", encoding)
	}
}
