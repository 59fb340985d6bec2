package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"langtutor/internal/app"
	"langtutor/internal/dialogue"
	"langtutor/internal/provider"
	"langtutor/internal/storage"
	"langtutor/internal/tts"
)

const (
	tabGenerate = "generate"
	tabImport   = "import"
	tabPractice = "practice"
	tabLibrary  = "library"
)

var tabs = []string{tabGenerate, tabImport, tabPractice, tabLibrary}

type dialogueView struct {
	Target   app.Target
	Dialogue *dialogue.Dialogue
	Stats    dialogue.Stats
	Complete string
}

type pageData struct {
	Tab   string
	Tabs  []string
	Flash *app.Flash

	Generated *dialogueView
	Imported  *dialogueView
	Practice  *dialogueView

	Transcript string
	GrammarQ   string
	GrammarA   string
	LastExport string
	Voices     []tts.Voice

	Library    []storage.FileInfo
	LibraryErr string

	Levels           []dialogue.Level
	DefaultExchanges int
	MaxExchanges     int
	STTEnabled       bool
	LLMProvider      string
	TTSProvider      string
}

func (s *Server) index(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	cfg := s.service.Config()
	data := pageData{
		Tab:              tabOrDefault(c.QueryParam("tab")),
		Tabs:             tabs,
		Flash:            st.TakeFlash(),
		Generated:        viewOf(st, app.TargetGenerated),
		Imported:         viewOf(st, app.TargetImported),
		Practice:         viewOf(st, app.TargetPractice),
		Transcript:       st.Transcript,
		GrammarQ:         st.GrammarQ,
		GrammarA:         st.GrammarA,
		LastExport:       st.LastExport,
		Voices:           st.Voices,
		Levels:           dialogue.Levels(),
		DefaultExchanges: s.service.DefaultExchanges(),
		MaxExchanges:     cfg.MaxDialogueLength,
		STTEnabled:       s.service.STTEnabled(),
		LLMProvider:      s.service.Tutor().Provider(),
		TTSProvider:      s.service.TTS().Name(),
	}

	files, err := s.service.Library().List()
	if err != nil {
		data.LibraryErr = err.Error()
	}
	data.Library = files

	return c.Render(http.StatusOK, "index.html", data)
}

func viewOf(st *app.SessionState, t app.Target) *dialogueView {
	d := st.Dialogue(t)
	if d == nil {
		return nil
	}
	return &dialogueView{Target: t, Dialogue: d, Stats: d.Stats(), Complete: st.CompleteAudio[t]}
}

func (s *Server) health(c echo.Context) error {
	status := map[string]string{
		"status":   "ok",
		"llm":      s.service.Tutor().Provider(),
		"tts":      s.service.TTS().Name(),
		"stt":      "none",
		"sessions": strconv.Itoa(s.sessions.Len()),
	}
	if s.service.STTEnabled() {
		status["stt"] = s.service.STT().Name()
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) generate(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	exchanges, err := optionalInt(c.FormValue("exchanges"))
	if err != nil {
		return s.fail(c, st, tabGenerate, fmt.Errorf("exchanges: %w", err))
	}

	d, err := s.service.GenerateDialogue(c.Request().Context(), app.GenerateParams{
		Topic:     c.FormValue("topic"),
		Context:   c.FormValue("context"),
		Level:     c.FormValue("level"),
		Exchanges: exchanges,
	})
	if err != nil {
		return s.fail(c, st, tabGenerate, err)
	}

	st.SetDialogue(app.TargetGenerated, d)
	st.SetFlash(app.FlashSuccess, fmt.Sprintf("Generated %d messages about %q.", len(d.Messages), d.Title))
	return redirect(c, tabGenerate)
}

func (s *Server) importDialogue(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	content, name, err := readUpload(c, "file")
	if err != nil {
		return s.fail(c, st, tabImport, err)
	}

	d, err := s.service.Import(content, name)
	if err != nil {
		return s.fail(c, st, tabImport, err)
	}

	st.SetDialogue(app.TargetImported, d)
	st.SetFlash(app.FlashSuccess, fmt.Sprintf("Imported %q with %d messages.", d.Title, len(d.Messages)))
	return redirect(c, tabImport)
}

func (s *Server) exportDialogue(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	t, d, err := targetDialogue(c, st)
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}

	res, err := s.service.Export(c.Request().Context(), d, c.FormValue("format"))
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}
	st.LastExport = res.Path
	if res.ArchiveURL != "" {
		st.LastExport = res.ArchiveURL
	}
	return c.Attachment(res.Path, filepath.Base(res.Path))
}

func (s *Server) startPractice(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	d, err := s.service.StartPractice(c.FormValue("topic"), c.FormValue("level"))
	if err != nil {
		return s.fail(c, st, tabPractice, err)
	}

	st.SetDialogue(app.TargetPractice, d)
	st.Transcript = ""
	st.SetFlash(app.FlashInfo, fmt.Sprintf("Practice started: %s. Write your first line in French.", d.Title))
	return redirect(c, tabPractice)
}

func (s *Server) practiceMessage(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	if err := s.reply(c, st, c.FormValue("message")); err != nil {
		return s.fail(c, st, tabPractice, err)
	}
	return redirect(c, tabPractice)
}

func (s *Server) practiceVoice(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	audio, name, err := readUpload(c, "audio")
	if err != nil {
		return s.fail(c, st, tabPractice, err)
	}

	text, err := s.service.Transcribe(c.Request().Context(), audio, name)
	if err != nil {
		return s.fail(c, st, tabPractice, err)
	}
	st.Transcript = text

	if st.Practice == nil {
		st.SetFlash(app.FlashInfo, "Transcribed: "+app.Preview(text, 80))
		return redirect(c, tabPractice)
	}
	if err := s.reply(c, st, text); err != nil {
		return s.fail(c, st, tabPractice, err)
	}
	return redirect(c, tabPractice)
}

// reply sends input to the practice dialogue and voices the answer. Audio
// failures leave the text reply in place.
func (s *Server) reply(c echo.Context, st *app.SessionState, input string) error {
	d := st.Practice
	if d == nil {
		return &app.ValidationError{Problems: []string{"start a practice conversation first"}}
	}

	ctx := c.Request().Context()
	if _, err := s.service.ContinueDialogue(ctx, d, input); err != nil {
		return err
	}
	delete(st.CompleteAudio, app.TargetPractice)

	if _, err := s.service.GenerateMessageAudio(ctx, d, len(d.Messages)-1); err != nil {
		slog.Warn("Reply audio failed", "dialogue", d.ID, "error", err)
		st.SetFlash(app.FlashInfo, "Reply has no audio: "+describeError(err))
	}
	return nil
}

func (s *Server) grammar(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	question := c.FormValue("question")
	st.GrammarQ = question

	answer, err := s.service.AskGrammar(c.Request().Context(), question)
	if err != nil {
		return s.fail(c, st, tabPractice, err)
	}
	st.GrammarA = answer
	return redirect(c, tabPractice)
}

func (s *Server) messageAudio(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	t, d, err := targetDialogue(c, st)
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}
	index, err := strconv.Atoi(c.FormValue("index"))
	if err != nil {
		return s.fail(c, st, tabOf(t), &app.ValidationError{Problems: []string{"message index must be a number"}})
	}

	if _, err := s.service.GenerateMessageAudio(c.Request().Context(), d, index, voiceOption(c)...); err != nil {
		return s.fail(c, st, tabOf(t), err)
	}
	delete(st.CompleteAudio, t)
	return redirect(c, tabOf(t))
}

func (s *Server) dialogueAudio(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	t, d, err := targetDialogue(c, st)
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}

	n, err := s.service.GenerateDialogueAudio(c.Request().Context(), d, voiceOption(c)...)
	if n > 0 {
		delete(st.CompleteAudio, t)
	}
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}
	st.SetFlash(app.FlashSuccess, fmt.Sprintf("Generated %d audio files.", n))
	return redirect(c, tabOf(t))
}

func (s *Server) completeAudio(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	t, d, err := targetDialogue(c, st)
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}

	path, err := s.service.GenerateCompleteAudio(c.Request().Context(), d, voiceOption(c)...)
	if err != nil {
		return s.fail(c, st, tabOf(t), err)
	}
	st.CompleteAudio[t] = path
	st.SetFlash(app.FlashSuccess, "Complete dialogue audio is ready.")
	return redirect(c, tabOf(t))
}

func (s *Server) voices(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	voices, err := s.service.Voices(c.Request().Context())
	if c.QueryParam("format") == "json" {
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, describeError(err))
		}
		return c.JSON(http.StatusOK, voices)
	}
	if err != nil {
		return s.fail(c, st, tabLibrary, err)
	}

	st.Voices = voices
	st.SetFlash(app.FlashInfo, fmt.Sprintf("%s offers %d voices.", s.service.TTS().Name(), len(voices)))
	return redirect(c, tabLibrary)
}

func (s *Server) serveAudio(c echo.Context) error {
	info, err := s.service.Library().Info(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audio not found")
	}
	return c.File(info.Path)
}

func (s *Server) deleteAudio(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	name := c.FormValue("name")
	deleted, err := s.service.Library().Delete(name)
	if err != nil {
		return s.fail(c, st, tabLibrary, err)
	}
	if !deleted {
		st.SetFlash(app.FlashError, fmt.Sprintf("%s is not in the library.", name))
		return redirect(c, tabLibrary)
	}

	forgetAudio(st, filepath.Base(name))
	st.SetFlash(app.FlashSuccess, "Deleted "+filepath.Base(name)+".")
	return redirect(c, tabLibrary)
}

func (s *Server) cleanupLibrary(c echo.Context) error {
	st := session(c)
	st.Lock()
	defer st.Unlock()

	keep, err := optionalInt(c.FormValue("keep"))
	if err != nil {
		return s.fail(c, st, tabLibrary, fmt.Errorf("keep: %w", err))
	}

	deleted, err := s.service.CleanupLibrary(keep)
	if err != nil {
		return s.fail(c, st, tabLibrary, err)
	}
	st.SetFlash(app.FlashSuccess, fmt.Sprintf("Removed %d old audio files.", deleted))
	return redirect(c, tabLibrary)
}

// fail shows err on the page. Handlers never answer with an error status for
// problems the user can act on.
func (s *Server) fail(c echo.Context, st *app.SessionState, tab string, err error) error {
	slog.Warn("Request failed", "path", c.Path(), "error", err)
	st.SetFlash(app.FlashError, describeError(err))
	return redirect(c, tab)
}

func describeError(err error) string {
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case provider.KindAuth:
			return fmt.Sprintf("%s rejected the credentials, check the API key. (%v)", pe.Provider, pe.Err)
		case provider.KindRateLimit:
			return fmt.Sprintf("%s rate limit reached, wait a moment and try again.", pe.Provider)
		case provider.KindUnavailable:
			return fmt.Sprintf("%s is unavailable right now. (%v)", pe.Provider, pe.Err)
		}
	}
	return err.Error()
}

func redirect(c echo.Context, tab string) error {
	return c.Redirect(http.StatusSeeOther, "/?tab="+tab)
}

func tabOrDefault(tab string) string {
	for _, t := range tabs {
		if t == tab {
			return tab
		}
	}
	return tabGenerate
}

func tabOf(t app.Target) string {
	switch t {
	case app.TargetImported:
		return tabImport
	case app.TargetPractice:
		return tabPractice
	}
	return tabGenerate
}

func targetDialogue(c echo.Context, st *app.SessionState) (app.Target, *dialogue.Dialogue, error) {
	t, ok := app.ParseTarget(c.FormValue("target"))
	if !ok {
		return app.TargetGenerated, nil, &app.ValidationError{Problems: []string{fmt.Sprintf("unknown dialogue %q", c.FormValue("target"))}}
	}
	d := st.Dialogue(t)
	if d == nil || d.IsEmpty() {
		return t, nil, &app.ValidationError{Problems: []string{"there is no " + string(t) + " dialogue yet"}}
	}
	return t, d, nil
}

func voiceOption(c echo.Context) []app.AudioOption {
	if v := strings.TrimSpace(c.FormValue("voice")); v != "" {
		return []app.AudioOption{app.WithVoice(v)}
	}
	return nil
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

func readUpload(c echo.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", &app.ValidationError{Problems: []string{"choose a file to upload"}}
	}
	if fh.Size > maxUploadBytes {
		return nil, "", &app.ValidationError{Problems: []string{fmt.Sprintf("%s is larger than %d MB", fh.Filename, maxUploadBytes>>20)}}
	}
	data, err := readFile(fh)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, filepath.Base(fh.Filename), nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// forgetAudio drops references to a deleted file from the session.
func forgetAudio(st *app.SessionState, name string) {
	for _, t := range []app.Target{app.TargetGenerated, app.TargetImported, app.TargetPractice} {
		if d := st.Dialogue(t); d != nil {
			for i := range d.Messages {
				if filepath.Base(d.Messages[i].AudioPath) == name {
					d.Messages[i].AudioPath = ""
				}
			}
		}
		if filepath.Base(st.CompleteAudio[t]) == name {
			delete(st.CompleteAudio, t)
		}
	}
}
