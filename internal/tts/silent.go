package tts

import "context"

const silentName = "silent"

var _ Provider = (*Silent)(nil)

// Silent produces silence sized to the text. It needs no network and backs
// offline runs and tests.
type Silent struct{}

func NewSilent() *Silent {
	return &Silent{}
}

func (s *Silent) Name() string {
	return silentName
}

func (s *Silent) Synthesize(_ context.Context, req Request) (*Audio, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	return &Audio{Data: SilentWAV(estimateSeconds(req.Text)), Format: FormatWAV}, nil
}

func (s *Silent) Voices(_ context.Context, languageCode string) ([]Voice, error) {
	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	return []Voice{
		{Name: "silent-female", LanguageCode: languageCode, Gender: GenderFemale},
		{Name: "silent-male", LanguageCode: languageCode, Gender: GenderMale},
	}, nil
}
