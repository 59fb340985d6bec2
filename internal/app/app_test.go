package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"langtutor/internal/dialogue"
	"langtutor/internal/llm"
	"langtutor/internal/provider"
	"langtutor/internal/storage"
	"langtutor/internal/stt"
	"langtutor/internal/tts"
	"langtutor/pkg/config"
)

type mockCompleter struct {
	reply string
	err   error
	calls int
}

func (m *mockCompleter) Name() string { return "mock" }

func (m *mockCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	m.calls++
	return m.reply, m.err
}

type mockTranscriber struct {
	got stt.AudioConfig
}

func (m *mockTranscriber) Name() string { return "mock" }

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte, cfg stt.AudioConfig) (string, error) {
	m.got = cfg
	return "Je voudrais un croissant", nil
}

type mockArchiver struct {
	archived []string
	err      error
}

func (m *mockArchiver) Archive(_ context.Context, localPath string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.archived = append(m.archived, localPath)
	return "gs://bucket/" + filepath.Base(localPath), nil
}

func (m *mockArchiver) List(context.Context) ([]storage.ArchivedObject, error) { return nil, nil }
func (m *mockArchiver) Fetch(context.Context, string) ([]byte, error)          { return nil, nil }
func (m *mockArchiver) Close() error                                           { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		MaxDialogueLength:  10,
		DefaultVoiceGender: "female",
		AudioOutputFormat:  "wav",
		RequestTimeout:     5 * time.Second,
		Language:           "fr-FR",
		Storage: config.StorageConfig{
			AudioDir:        filepath.Join(dir, "audio"),
			ExportDir:       filepath.Join(dir, "output"),
			MaxLibraryFiles: 2,
		},
	}
}

func newTestService(t *testing.T, completer llm.Completer, opts ...func(*ServiceOptions)) *Service {
	t.Helper()
	cfg := testConfig(t)
	so := ServiceOptions{
		Config:  cfg,
		Tutor:   llm.NewTutor(completer, nil, llm.TutorOptions{}),
		TTS:     tts.NewSilent(),
		Library: storage.NewLibrary(cfg.Storage.AudioDir, cfg.Storage.ExportDir),
	}
	for _, o := range opts {
		o(&so)
	}
	return NewService(so)
}

const generatedReply = "Personne A: Bonjour, une table pour deux ?\nPersonne B: Oui, suivez-moi.\nPersonne A: Merci.\nPersonne B: Voici la carte."

func TestGenerateDialogue(t *testing.T) {
	svc := newTestService(t, &mockCompleter{reply: generatedReply})

	d, err := svc.GenerateDialogue(context.Background(), GenerateParams{Topic: "Au restaurant", Level: "intermédiaire"})
	if err != nil {
		t.Fatalf("GenerateDialogue() error = %v", err)
	}
	if d.ID == "" {
		t.Error("ID is empty")
	}
	if d.Level != dialogue.LevelIntermediate {
		t.Errorf("Level = %q", d.Level)
	}
	if len(d.Messages) != 4 || d.Messages[0].Role != dialogue.RoleUser {
		t.Errorf("Messages = %+v", d.Messages)
	}
}

func TestGenerateDialogueValidation(t *testing.T) {
	tests := []struct {
		name   string
		params GenerateParams
		want   string
	}{
		{name: "emptyTopic", params: GenerateParams{Topic: "  "}, want: "topic is required"},
		{name: "badLevel", params: GenerateParams{Topic: "x", Level: "expert"}, want: `unknown level "expert"`},
		{name: "tooMany", params: GenerateParams{Topic: "x", Exchanges: 11}, want: "between 1 and 10"},
		{name: "negative", params: GenerateParams{Topic: "x", Exchanges: -1}, want: "between 1 and 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockCompleter{reply: generatedReply}
			svc := newTestService(t, mc)

			_, err := svc.GenerateDialogue(context.Background(), tt.params)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("GenerateDialogue() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(ve.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", ve.Error(), tt.want)
			}
			if mc.calls != 0 {
				t.Errorf("provider called %d times", mc.calls)
			}
		})
	}
}

func TestDefaultExchanges(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	if got := svc.DefaultExchanges(); got != 8 {
		t.Errorf("DefaultExchanges() = %d, want 8", got)
	}
	svc.cfg.MaxDialogueLength = 4
	if got := svc.DefaultExchanges(); got != 4 {
		t.Errorf("DefaultExchanges() = %d, want 4", got)
	}
}

func TestGenerateDialogueProviderError(t *testing.T) {
	svc := newTestService(t, &mockCompleter{err: errors.New("status 429: slow down")})

	_, err := svc.GenerateDialogue(context.Background(), GenerateParams{Topic: "x"})
	if provider.KindOf(err) != provider.KindRateLimit {
		t.Errorf("GenerateDialogue() error = %v, want rate limit ProviderError", err)
	}
}

func TestContinueDialogue(t *testing.T) {
	svc := newTestService(t, &mockCompleter{reply: "Bien sûr !"})
	d, err := svc.StartPractice("Au café", "beginner")
	if err != nil {
		t.Fatalf("StartPractice() error = %v", err)
	}

	reply, err := svc.ContinueDialogue(context.Background(), d, " Un café, s'il vous plaît ")
	if err != nil {
		t.Fatalf("ContinueDialogue() error = %v", err)
	}
	if reply != "Bien sûr !" {
		t.Errorf("reply = %q", reply)
	}
	if len(d.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(d.Messages))
	}
	if d.Messages[0].Content != "Un café, s'il vous plaît" || d.Messages[1].Role != dialogue.RoleAssistant {
		t.Errorf("Messages = %+v", d.Messages)
	}

	if _, err := svc.ContinueDialogue(context.Background(), d, ""); err == nil {
		t.Error("ContinueDialogue(\"\") expected error")
	}
	if len(d.Messages) != 2 {
		t.Errorf("empty input changed the dialogue")
	}
}

func TestContinueDialogueFailureLeavesDialogue(t *testing.T) {
	svc := newTestService(t, &mockCompleter{err: errors.New("503 unavailable")})
	d := dialogue.New("x", dialogue.LevelBeginner, "")

	if _, err := svc.ContinueDialogue(context.Background(), d, "Bonjour"); err == nil {
		t.Fatal("expected error")
	}
	if !d.IsEmpty() {
		t.Errorf("dialogue has %d messages after a failed call", len(d.Messages))
	}
}

func TestTranscribe(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	if _, err := svc.Transcribe(context.Background(), []byte("x"), "a.wav"); !errors.Is(err, ErrSTTDisabled) {
		t.Errorf("Transcribe() error = %v, want ErrSTTDisabled", err)
	}

	mt := &mockTranscriber{}
	svc = newTestService(t, &mockCompleter{}, func(o *ServiceOptions) { o.STT = mt })

	text, err := svc.Transcribe(context.Background(), []byte("x"), "voice.webm")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "Je voudrais un croissant" || mt.got.Encoding != stt.EncodingWebmOpus || mt.got.Language != "fr-FR" {
		t.Errorf("text = %q, cfg = %+v", text, mt.got)
	}

	var ve *ValidationError
	if _, err := svc.Transcribe(context.Background(), []byte("x"), "voice.txt"); !errors.As(err, &ve) {
		t.Errorf("Transcribe(.txt) error = %v, want *ValidationError", err)
	}
}

func TestImportAndExport(t *testing.T) {
	archiver := &mockArchiver{}
	svc := newTestService(t, &mockCompleter{}, func(o *ServiceOptions) { o.Archiver = archiver })

	d, err := svc.Import([]byte("role,content\nuser,Bonjour\nassistant,Bonjour !\n"), "Au marché.csv")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if d.ID == "" || d.Title != "Au marché" || len(d.Messages) != 2 {
		t.Errorf("Import() = %+v", d)
	}

	res, err := svc.Export(context.Background(), d, "md")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(res.Path), "au_marche_") || filepath.Ext(res.Path) != ".md" {
		t.Errorf("Path = %q", res.Path)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("export not written: %v", err)
	}
	if res.ArchiveURL == "" || len(archiver.archived) != 1 {
		t.Errorf("ArchiveURL = %q, archived = %v", res.ArchiveURL, archiver.archived)
	}

	if _, err := svc.Export(context.Background(), d, "pdf"); err == nil {
		t.Error("Export(pdf) expected error")
	}
}

func TestExportArchiveFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, &mockCompleter{}, func(o *ServiceOptions) {
		o.Archiver = &mockArchiver{err: errors.New("bucket missing")}
	})
	d := dialogue.New("Test", dialogue.LevelBeginner, "")
	d.AddMessage(dialogue.RoleUser, "Bonjour")

	res, err := svc.Export(context.Background(), d, "json")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.ArchiveURL != "" {
		t.Errorf("ArchiveURL = %q, want empty", res.ArchiveURL)
	}
}

func sampleDialogue() *dialogue.Dialogue {
	d := dialogue.New("Test", dialogue.LevelBeginner, "")
	d.AddMessage(dialogue.RoleUser, "Bonjour madame")
	d.AddMessage(dialogue.RoleAssistant, "Bonjour monsieur, vous désirez ?")
	d.AddMessage(dialogue.RoleUser, "Un pain, s'il vous plaît")
	return d
}

func TestGenerateMessageAudio(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	d := sampleDialogue()

	path, err := svc.GenerateMessageAudio(context.Background(), d, 1)
	if err != nil {
		t.Fatalf("GenerateMessageAudio() error = %v", err)
	}
	if d.ID == "" {
		t.Error("dialogue was not given an id")
	}
	if d.Messages[1].AudioPath != path || filepath.Base(path) != storage.MessageAudioName(d.ID, 1, ".wav") {
		t.Errorf("path = %q, AudioPath = %q", path, d.Messages[1].AudioPath)
	}

	var ve *ValidationError
	if _, err := svc.GenerateMessageAudio(context.Background(), d, 3); !errors.As(err, &ve) {
		t.Errorf("GenerateMessageAudio(3) error = %v, want *ValidationError", err)
	}
}

func TestGenerateDialogueAudioSkipsExisting(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	d := sampleDialogue()

	if _, err := svc.GenerateMessageAudio(context.Background(), d, 0); err != nil {
		t.Fatal(err)
	}
	n, err := svc.GenerateDialogueAudio(context.Background(), d)
	if err != nil {
		t.Fatalf("GenerateDialogueAudio() error = %v", err)
	}
	if n != 2 {
		t.Errorf("generated = %d, want 2", n)
	}
	for i, m := range d.Messages {
		if m.AudioPath == "" {
			t.Errorf("message %d has no audio", i)
		}
	}
}

type failingTTS struct{ *tts.Silent }

func (failingTTS) Synthesize(context.Context, tts.Request) (*tts.Audio, error) {
	return nil, &provider.ProviderError{Kind: provider.KindAuth, Provider: "failing", Op: "synthesize"}
}

func TestGenerateDialogueAudioError(t *testing.T) {
	svc := newTestService(t, &mockCompleter{}, func(o *ServiceOptions) { o.TTS = failingTTS{tts.NewSilent()} })

	n, err := svc.GenerateDialogueAudio(context.Background(), sampleDialogue())
	if n != 0 || provider.KindOf(err) != provider.KindAuth {
		t.Errorf("GenerateDialogueAudio() = %d, %v", n, err)
	}
}

func TestGenerateCompleteAudio(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	d := sampleDialogue()

	path, err := svc.GenerateCompleteAudio(context.Background(), d)
	if err != nil {
		t.Fatalf("GenerateCompleteAudio() error = %v", err)
	}
	if filepath.Base(path) != storage.CompleteAudioName(d.ID, ".wav") {
		t.Errorf("path = %q", path)
	}

	var total int64
	for _, m := range d.Messages {
		info, err := os.Stat(m.AudioPath)
		if err != nil {
			t.Fatal(err)
		}
		total += info.Size()
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// One header instead of three.
	if want := total - 2*44; info.Size() != want {
		t.Errorf("complete audio = %d bytes, want %d", info.Size(), want)
	}

	var ve *ValidationError
	if _, err := svc.GenerateCompleteAudio(context.Background(), dialogue.New("x", "", "")); !errors.As(err, &ve) {
		t.Errorf("GenerateCompleteAudio(empty) error = %v, want *ValidationError", err)
	}
}

func TestCleanupLibrary(t *testing.T) {
	svc := newTestService(t, &mockCompleter{})
	if _, err := svc.GenerateDialogueAudio(context.Background(), sampleDialogue()); err != nil {
		t.Fatal(err)
	}

	deleted, err := svc.CleanupLibrary(0)
	if err != nil {
		t.Fatalf("CleanupLibrary() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestSanitizeForPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simpleTitle",
			input: "Hello World",
			want:  "hello_world",
		},
		{
			name:  "accents",
			input: "Café à Paris",
			want:  "cafe_a_paris",
		},
		{
			name:  "specialChars",
			input: "Où est la gare ?!",
			want:  "ou_est_la_gare",
		},
		{
			name:  "alreadyClean",
			input: "simple-title_here",
			want:  "simple-title_here",
		},
		{
			name:  "emptyString",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeForPath(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeForPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("Bonjour\n  tout le   monde", 100); got != "Bonjour tout le monde" {
		t.Errorf("Preview() = %q", got)
	}
	if got := Preview("Très longue phrase", 4); got != "Très…" {
		t.Errorf("Preview() = %q", got)
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	id, state := store.Get("")
	if id == "" || state == nil {
		t.Fatal("Get(\"\") returned no session")
	}
	state.SetDialogue(TargetGenerated, dialogue.New("x", "", ""))

	again, same := store.Get(id)
	if again != id || same != state {
		t.Error("Get(id) did not return the existing session")
	}

	other, _ := store.Get("unknown")
	if other == id || other == "unknown" {
		t.Errorf("Get(unknown) = %q", other)
	}

	now = now.Add(30 * time.Minute)
	store.Get(id)
	now = now.Add(45 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1 (only the idle session)", removed)
	}

	now = now.Add(2 * time.Hour)
	newID, fresh := store.Get(id)
	if newID == id || fresh.Generated != nil {
		t.Error("expired session was reused")
	}
}

func TestSessionFlash(t *testing.T) {
	s := newSessionState()
	s.SetFlash(FlashError, "boom")

	if f := s.TakeFlash(); f == nil || f.Kind != FlashError || f.Message != "boom" {
		t.Errorf("TakeFlash() = %+v", f)
	}
	if f := s.TakeFlash(); f != nil {
		t.Errorf("second TakeFlash() = %+v, want nil", f)
	}
}
