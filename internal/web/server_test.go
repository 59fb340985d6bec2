package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"langtutor/internal/app"
	"langtutor/internal/llm"
	"langtutor/internal/storage"
	"langtutor/internal/tts"
	"langtutor/pkg/config"
)

type stubCompleter struct {
	reply string
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return s.reply, nil
}

const dialogueReply = "Personne A: Bonjour madame\nPersonne B: Bonjour monsieur\nPersonne A: Un croissant s'il vous plait\nPersonne B: Voila"

func newTestServer(t *testing.T, reply string) (*Server, *app.Service) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		MaxDialogueLength:  10,
		DefaultVoiceGender: "female",
		AudioOutputFormat:  "wav",
		RequestTimeout:     5 * time.Second,
		Language:           "fr-FR",
		Storage: config.StorageConfig{
			AudioDir:        filepath.Join(dir, "audio"),
			ExportDir:       filepath.Join(dir, "output"),
			MaxLibraryFiles: 10,
		},
	}
	svc := app.NewService(app.ServiceOptions{
		Config:  cfg,
		Tutor:   llm.NewTutor(&stubCompleter{reply: reply}, nil, llm.TutorOptions{}),
		TTS:     tts.NewSilent(),
		Library: storage.NewLibrary(cfg.Storage.AudioDir, cfg.Storage.ExportDir),
	})
	srv, err := NewServer(svc, Options{MaxConcurrent: 2, Quiet: true})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, svc
}

type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) upload(path, field, filename string, content []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		c.t.Fatal(err)
	}
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// page follows a redirect back to the UI and returns the rendered HTML.
func (c *client) page(rec *httptest.ResponseRecorder) string {
	c.t.Helper()
	if rec.Code != http.StatusSeeOther {
		c.t.Fatalf("status = %d, want 303; body = %s", rec.Code, rec.Body.String())
	}
	next := c.get(rec.Header().Get("Location"))
	if next.Code != http.StatusOK {
		c.t.Fatalf("GET %s status = %d", rec.Header().Get("Location"), next.Code)
	}
	return next.Body.String()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	rec := c.get("/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["llm"] != "stub" || body["tts"] != "silent" || body["stt"] != "none" {
		t.Errorf("body = %v", body)
	}
	if body["sessions"] != "0" {
		t.Errorf("sessions = %q, want 0", body["sessions"])
	}

	c.get("/")
	if err := json.Unmarshal(c.get("/health").Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["sessions"] != "1" {
		t.Errorf("sessions after first page = %q, want 1", body["sessions"])
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	if rec := c.get("/metrics"); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	rec := c.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if c.cookie == nil || c.cookie.Value == "" {
		t.Fatal("no session cookie")
	}
	first := c.cookie.Value

	c.get("/?tab=library")
	if c.cookie.Value != first {
		t.Error("session cookie changed between requests")
	}
}

func TestGenerate(t *testing.T) {
	srv, _ := newTestServer(t, dialogueReply)
	c := &client{t: t, srv: srv}

	body := c.page(c.post("/generate", url.Values{"topic": {"La boulangerie"}, "level": {"beginner"}, "exchanges": {"4"}}))

	for _, want := range []string{"Generated 4 messages", "Bonjour madame", "Voila", `action="/audio/complete"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestGenerateErrorsBecomeFlash(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "missingTopic", form: url.Values{}, want: "topic is required"},
		{name: "badExchanges", form: url.Values{"topic": {"x"}, "exchanges": {"many"}}, want: "is not a number"},
		{name: "tooManyExchanges", form: url.Values{"topic": {"x"}, "exchanges": {"50"}}, want: "between 1 and 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, dialogueReply)
			c := &client{t: t, srv: srv}

			body := c.page(c.post("/generate", tt.form))
			if !strings.Contains(body, `class="flash error"`) || !strings.Contains(body, tt.want) {
				t.Errorf("page lacks error flash %q", tt.want)
			}
		})
	}
}

func TestImport(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	body := c.page(c.upload("/import", "file", "marche.csv", []byte("user,Bonjour\nassistant,Bonjour à vous\n")))
	if !strings.Contains(body, "with 2 messages") || !strings.Contains(body, "Bonjour à vous") {
		t.Errorf("imported dialogue not shown:\n%s", body)
	}

	body = c.page(c.upload("/import", "file", "notes.pdf", []byte("x")))
	if !strings.Contains(body, `class="flash error"`) {
		t.Error("unsupported upload did not flash an error")
	}
}

func TestPractice(t *testing.T) {
	srv, _ := newTestServer(t, "Tres bien, et ensuite")
	c := &client{t: t, srv: srv}

	body := c.page(c.post("/practice/message", url.Values{"message": {"Bonjour"}}))
	if !strings.Contains(body, "start a practice conversation first") {
		t.Error("message without a practice dialogue was accepted")
	}

	c.page(c.post("/practice/start", url.Values{"topic": {"Au marché"}, "level": {"beginner"}}))
	body = c.page(c.post("/practice/message", url.Values{"message": {"Je voudrais des pommes"}}))

	if !strings.Contains(body, "Je voudrais des pommes") || !strings.Contains(body, "Tres bien, et ensuite") {
		t.Errorf("practice turn not shown:\n%s", body)
	}
	if !strings.Contains(body, `src="/audio/dialogue_`) {
		t.Error("reply has no audio player")
	}
}

func TestPracticeVoiceDisabled(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	body := c.page(c.upload("/practice/voice", "audio", "voice.wav", tts.SilentWAV(0.1)))
	if !strings.Contains(body, "speech recognition is disabled") {
		t.Error("voice input with stt disabled did not flash an error")
	}
}

func TestGrammar(t *testing.T) {
	srv, _ := newTestServer(t, "Use the subjonctif after il faut que.")
	c := &client{t: t, srv: srv}

	body := c.page(c.post("/grammar", url.Values{"question": {"When is the subjonctif used"}}))
	if !strings.Contains(body, "Use the subjonctif after il faut que.") {
		t.Error("grammar answer not shown")
	}
}

func TestAudioAndLibrary(t *testing.T) {
	srv, svc := newTestServer(t, dialogueReply)
	c := &client{t: t, srv: srv}
	c.page(c.post("/generate", url.Values{"topic": {"Test"}, "exchanges": {"4"}}))

	c.page(c.post("/audio/message", url.Values{"target": {"generated"}, "index": {"0"}}))
	body := c.page(c.post("/audio/dialogue", url.Values{"target": {"generated"}}))
	if !strings.Contains(body, "Generated 3 audio files") {
		t.Errorf("dialogue audio flash missing:\n%s", body)
	}
	body = c.page(c.post("/audio/complete", url.Values{"target": {"generated"}}))
	if !strings.Contains(body, "Complete dialogue audio is ready") {
		t.Error("complete audio flash missing")
	}

	files, err := svc.Library().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 5 {
		t.Fatalf("library has %d files, want 5", len(files))
	}

	rec := c.get("/audio/" + files[0].Name)
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Errorf("GET audio status = %d, %d bytes", rec.Code, rec.Body.Len())
	}

	body = c.page(c.post("/library/delete", url.Values{"name": {files[0].Name}}))
	if !strings.Contains(body, "Deleted "+files[0].Name) {
		t.Error("delete flash missing")
	}

	body = c.page(c.post("/library/cleanup", url.Values{"keep": {"1"}}))
	if !strings.Contains(body, "Removed 3 old audio files") {
		t.Errorf("cleanup flash missing:\n%s", body)
	}
}

func TestAudioWithoutDialogue(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	body := c.page(c.post("/audio/dialogue", url.Values{"target": {"imported"}}))
	if !strings.Contains(body, "there is no imported dialogue yet") {
		t.Error("missing dialogue did not flash an error")
	}
	body = c.page(c.post("/audio/complete", url.Values{"target": {"bogus"}}))
	if !strings.Contains(body, "unknown dialogue") {
		t.Error("unknown target did not flash an error")
	}
}

func TestServeAudioOutsideLibrary(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	for _, name := range []string{"missing.wav", "..%2Fsecret.wav"} {
		if rec := c.get("/audio/" + name); rec.Code != http.StatusNotFound {
			t.Errorf("GET /audio/%s status = %d, want 404", name, rec.Code)
		}
	}
}

func TestExport(t *testing.T) {
	srv, svc := newTestServer(t, dialogueReply)
	c := &client{t: t, srv: srv}
	c.page(c.post("/generate", url.Values{"topic": {"Le café"}}))

	rec := c.post("/export", url.Values{"target": {"generated"}, "format": {"json"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "le_cafe_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Error("export body is not JSON")
	}

	entries, err := os.ReadDir(svc.Library().ExportDir())
	if err != nil || len(entries) != 1 {
		t.Errorf("export dir entries = %d, err = %v", len(entries), err)
	}

	body := c.page(c.post("/export", url.Values{"target": {"generated"}, "format": {"docx"}}))
	if !strings.Contains(body, `class="flash error"`) {
		t.Error("unsupported export format did not flash an error")
	}
}

func TestVoicesJSON(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := &client{t: t, srv: srv}

	rec := c.get("/voices?format=json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var voices []tts.Voice
	if err := json.Unmarshal(rec.Body.Bytes(), &voices); err != nil {
		t.Fatal(err)
	}
	if len(voices) != 2 {
		t.Errorf("voices = %+v", voices)
	}

	body := c.page(c.get("/voices"))
	if !strings.Contains(body, "silent-male") {
		t.Error("voice list not rendered on the library tab")
	}
}

func TestLimitGivesUpWhenCancelled(t *testing.T) {
	srv, _ := newTestServer(t, dialogueReply)
	for range cap(srv.slots) {
		srv.slots <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("topic=x")).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
