package tts

import (
	"context"
	"fmt"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"langtutor/internal/provider"
)

const googleName = "google_cloud"

var googleEncodings = map[Format]texttospeechpb.AudioEncoding{
	FormatMP3: texttospeechpb.AudioEncoding_MP3,
	FormatWAV: texttospeechpb.AudioEncoding_LINEAR16,
	FormatOGG: texttospeechpb.AudioEncoding_OGG_OPUS,
}

// googleAPI is the part of the texttospeech client used here.
type googleAPI interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

var _ Provider = (*GoogleClient)(nil)

type GoogleClient struct {
	api    googleAPI
	voices VoicePair
}

// NewGoogleClient uses credentialsPath when set and application default
// credentials otherwise.
func NewGoogleClient(ctx context.Context, credentialsPath string, voices VoicePair) (*GoogleClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create texttospeech client: %w", err)
	}
	return &GoogleClient{api: client, voices: voices}, nil
}

func (c *GoogleClient) Name() string {
	return googleName
}

func (c *GoogleClient) Synthesize(ctx context.Context, req Request) (_ *Audio, err error) {
	req, err = req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe(googleName, "synthesize", start, err) }()

	gender := texttospeechpb.SsmlVoiceGender_FEMALE
	if req.Gender == GenderMale {
		gender = texttospeechpb.SsmlVoiceGender_MALE
	}

	resp, err := c.api.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.LanguageCode,
			Name:         req.voiceName(c.voices),
			SsmlGender:   gender,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: googleEncodings[req.Format],
		},
	})
	if err != nil {
		return nil, provider.Wrap(googleName, "synthesize", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, provider.Empty(googleName, "synthesize", "empty audio response")
	}
	return &Audio{Data: resp.GetAudioContent(), Format: req.Format}, nil
}

func (c *GoogleClient) Voices(ctx context.Context, languageCode string) (_ []Voice, err error) {
	start := time.Now()
	defer func() { observe(googleName, "voices", start, err) }()

	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	resp, err := c.api.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: languageCode})
	if err != nil {
		return nil, provider.Wrap(googleName, "voices", err)
	}

	voices := make([]Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		var gender Gender
		switch v.GetSsmlGender() {
		case texttospeechpb.SsmlVoiceGender_FEMALE:
			gender = GenderFemale
		case texttospeechpb.SsmlVoiceGender_MALE:
			gender = GenderMale
		}
		voices = append(voices, Voice{Name: v.GetName(), LanguageCode: languageCode, Gender: gender})
	}
	return voices, nil
}

func (c *GoogleClient) Close() error {
	return c.api.Close()
}
