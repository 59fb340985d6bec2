// Package web serves the practice UI: one page with the Generate, Import,
// Practice and Audio Library tabs, driven by plain form posts.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"langtutor/internal/app"
	"langtutor/internal/provider"
)

const (
	sessionCookie  = "langtutor_session"
	sessionKey     = "session"
	maxUploadBytes = 25 << 20
	shutdownGrace  = 10 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	echo     *echo.Echo
	service  *app.Service
	sessions *app.SessionStore
	slots    chan struct{}
}

type Options struct {
	// SessionTTL defaults to two hours.
	SessionTTL time.Duration
	// MaxConcurrent bounds the requests that call a provider at once.
	MaxConcurrent int
	// Quiet turns off the request log.
	Quiet bool
}

func NewServer(svc *app.Service, opts Options) (*Server, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	if !opts.Quiet {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("25M"))

	s := &Server{
		echo:     e,
		service:  svc,
		sessions: app.NewSessionStore(opts.SessionTTL),
		slots:    make(chan struct{}, opts.MaxConcurrent),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(provider.MetricsHandler()))

	page := []echo.MiddlewareFunc{s.withSession}
	e.GET("/", s.index, page...)
	e.GET("/audio/:name", s.serveAudio, page...)
	e.POST("/import", s.importDialogue, page...)
	e.POST("/export", s.exportDialogue, page...)
	e.POST("/practice/start", s.startPractice, page...)
	e.POST("/library/delete", s.deleteAudio, page...)
	e.POST("/library/cleanup", s.cleanupLibrary, page...)

	calls := []echo.MiddlewareFunc{s.withSession, s.limit}
	e.POST("/generate", s.generate, calls...)
	e.POST("/practice/message", s.practiceMessage, calls...)
	e.POST("/practice/voice", s.practiceVoice, calls...)
	e.POST("/grammar", s.grammar, calls...)
	e.POST("/audio/message", s.messageAudio, calls...)
	e.POST("/audio/dialogue", s.dialogueAudio, calls...)
	e.POST("/audio/complete", s.completeAudio, calls...)
	e.GET("/voices", s.voices, calls...)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web UI listening", "addr", "http://"+addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down web UI")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// withSession loads the caller's state from the session cookie, issuing a
// new cookie when the session is unknown or expired.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var id string
		if cookie, err := c.Cookie(sessionCookie); err == nil {
			id = cookie.Value
		}

		newID, state := s.sessions.Get(id)
		if newID != id {
			c.SetCookie(&http.Cookie{
				Name:     sessionCookie,
				Value:    newID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionKey, state)
		return next(c)
	}
}

// limit waits for a free provider slot. A client that gives up while waiting
// is not served.
func (s *Server) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled while waiting")
		}
		defer func() { <-s.slots }()
		return next(c)
	}
}

func session(c echo.Context) *app.SessionState {
	return c.Get(sessionKey).(*app.SessionState)
}

type renderer struct {
	tmpl *template.Template
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"audioURL": audioURL,
		"inc":      func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &renderer{tmpl: tmpl}, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

func audioURL(path string) string {
	if path == "" {
		return ""
	}
	return "/audio/" + filepath.Base(path)
}
