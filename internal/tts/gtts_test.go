package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"langtutor/internal/provider"
)

func TestSplitText(t *testing.T) {
	long := strings.Repeat("Je voudrais un café, s'il vous plaît. ", 12)

	tests := []struct {
		name       string
		text       string
		max        int
		wantChunks int
	}{
		{name: "short", text: "Bonjour !", max: 200, wantChunks: 1},
		{name: "sentences", text: "Bonjour. Comment allez-vous ? Très bien.", max: 20, wantChunks: 3},
		{name: "long", text: long, max: 200, wantChunks: 3},
		{name: "noSpaces", text: strings.Repeat("a", 25), max: 10, wantChunks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitText(tt.text, tt.max)
			if len(chunks) != tt.wantChunks {
				t.Errorf("len(chunks) = %d, want %d: %q", len(chunks), tt.wantChunks, chunks)
			}
			for _, c := range chunks {
				if n := utf8.RuneCountInString(c); n > tt.max || n == 0 {
					t.Errorf("chunk %q has %d runes (max %d)", c, n, tt.max)
				}
			}
		})
	}
}

func TestGTTSSynthesize(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if q.Get("tl") != "fr" || q.Get("client") != "tw-ob" {
			t.Errorf("query = %v", q)
		}
		if q.Get("total") != "2" {
			t.Errorf("total = %q, want 2", q.Get("total"))
		}
		_, _ = w.Write([]byte("mp3-" + q.Get("idx") + ";"))
	}))
	defer server.Close()

	client := NewGTTSClient()
	client.SetBaseURL(server.URL)

	text := strings.Repeat("Bonjour tout le monde. ", 10)
	audio, err := client.Synthesize(context.Background(), Request{Text: text, Format: FormatWAV})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if string(audio.Data) != "mp3-0;mp3-1;" {
		t.Errorf("audio = %q", audio.Data)
	}
	if audio.Format != FormatMP3 {
		t.Errorf("Format = %q, want mp3", audio.Format)
	}
}

func TestGTTSSynthesizeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGTTSClient()
	client.SetBaseURL(server.URL)

	_, err := client.Synthesize(context.Background(), Request{Text: "Bonjour"})
	if provider.KindOf(err) != provider.KindRateLimit {
		t.Errorf("Synthesize() error = %v, want rate limit", err)
	}
}
