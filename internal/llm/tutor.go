package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"langtutor/internal/dialogue"
	"langtutor/internal/provider"
	"langtutor/pkg/prompts"
)

const (
	historySize         = 6
	replyMaxTokens      = 200
	defaultTemperature  = 0.7
	defaultMaxTokens    = 1000
	defaultExchangeHint = 5
)

type DialogueRequest struct {
	Topic     string
	Context   string
	Level     dialogue.Level
	Exchanges int
}

type TutorOptions struct {
	Temperature float32
	MaxTokens   int
}

// Tutor turns tutoring tasks into completions on a single backend.
type Tutor struct {
	completer Completer
	prompts   *prompts.Prompts
	opts      TutorOptions
}

func NewTutor(c Completer, p *prompts.Prompts, opts TutorOptions) *Tutor {
	if p == nil {
		p = prompts.Default()
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Tutor{completer: c, prompts: p, opts: opts}
}

func (t *Tutor) Provider() string {
	return t.completer.Name()
}

// GenerateDialogue asks for a "Personne A / Personne B" dialogue and parses
// the reply. Personne A becomes the user, Personne B the assistant.
func (t *Tutor) GenerateDialogue(ctx context.Context, req DialogueRequest) (*dialogue.Dialogue, error) {
	if req.Exchanges <= 0 {
		req.Exchanges = defaultExchangeHint
	}

	system, err := t.prompts.RenderTutor(prompts.TutorParams{Level: string(req.Level), Context: req.Context})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	prompt, err := t.prompts.RenderDialogue(prompts.DialogueParams{
		Topic:     req.Topic,
		Level:     string(req.Level),
		Exchanges: req.Exchanges,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	slog.Debug("Requesting dialogue", "provider", t.completer.Name(), "topic", req.Topic, "level", req.Level, "exchanges", req.Exchanges)

	text, err := t.complete(ctx, "generate_dialogue", CompletionRequest{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: t.opts.Temperature,
		MaxTokens:   t.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	d := dialogue.ParseMarkdown(text)
	if d.IsEmpty() {
		return nil, provider.Empty(t.completer.Name(), "generate_dialogue", "reply contained no dialogue lines")
	}
	now := time.Now()
	for i := range d.Messages {
		d.Messages[i].Timestamp = now
	}
	d.Title = req.Topic
	d.Level = req.Level
	d.Context = req.Context
	d.CreatedAt = now

	slog.Debug("Dialogue generated", "messages", len(d.Messages))
	return d, nil
}

// ContinueDialogue answers userInput in character, using the last few
// messages of d as history. d is not modified.
func (t *Tutor) ContinueDialogue(ctx context.Context, d *dialogue.Dialogue, userInput string) (string, error) {
	system, err := t.prompts.RenderTutor(prompts.TutorParams{Level: string(d.Level), Context: d.Context})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	if instr := strings.TrimSpace(t.prompts.Dialogue.Continue); instr != "" {
		system += "\n\n" + instr
	}

	recent := d.Recent(historySize)
	messages := make([]Message, 0, len(recent)+1)
	for _, msg := range recent {
		role := RoleAssistant
		if msg.Role == dialogue.RoleUser {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userInput})

	reply, err := t.complete(ctx, "continue_dialogue", CompletionRequest{
		System:      system,
		Messages:    messages,
		Temperature: t.opts.Temperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// AskQuestion answers a French grammar question in English.
func (t *Tutor) AskQuestion(ctx context.Context, question string) (string, error) {
	prompt, err := t.prompts.RenderGrammar(prompts.GrammarParams{Question: question})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	return t.complete(ctx, "ask_question", CompletionRequest{
		System:      strings.TrimSpace(t.prompts.System.Grammar),
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: t.opts.Temperature,
		MaxTokens:   t.opts.MaxTokens,
	})
}

func (t *Tutor) complete(ctx context.Context, op string, req CompletionRequest) (text string, err error) {
	name := t.completer.Name()
	defer func(start time.Time) { provider.Observe("llm", name, op, start, err) }(time.Now())

	text, err = t.completer.Complete(ctx, req)
	if err != nil {
		return "", provider.Wrap(name, op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", provider.Empty(name, op, "empty response")
	}
	return text, nil
}
