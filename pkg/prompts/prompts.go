package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type Prompts struct {
	System   SystemPrompts   `yaml:"system"`
	Dialogue DialoguePrompts `yaml:"dialogue"`
	Grammar  GrammarPrompts  `yaml:"grammar"`
}

type SystemPrompts struct {
	Tutor   string `yaml:"tutor"`
	Grammar string `yaml:"grammar"`
}

type DialoguePrompts struct {
	Generate string `yaml:"generate"`
	Continue string `yaml:"continue"`
}

type GrammarPrompts struct {
	Question string `yaml:"question"`
}

type TutorParams struct {
	Level   string
	Context string
}

type DialogueParams struct {
	Topic     string
	Level     string
	Exchanges int
}

type GrammarParams struct {
	Question string
}

// Default returns the built-in French prompts.
func Default() *Prompts {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return &p
}

// LoadFrom reads a prompts file. Prompts it leaves out keep their built-in
// text. An empty path returns the defaults.
func LoadFrom(path string) (*Prompts, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	p.fillFrom(Default())
	return &p, nil
}

func (p *Prompts) fillFrom(d *Prompts) {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&p.System.Tutor, d.System.Tutor)
	fill(&p.System.Grammar, d.System.Grammar)
	fill(&p.Dialogue.Generate, d.Dialogue.Generate)
	fill(&p.Dialogue.Continue, d.Dialogue.Continue)
	fill(&p.Grammar.Question, d.Grammar.Question)
}

func (p *Prompts) RenderTutor(params TutorParams) (string, error) {
	return render(p.System.Tutor, params)
}

func (p *Prompts) RenderDialogue(params DialogueParams) (string, error) {
	return render(p.Dialogue.Generate, params)
}

func (p *Prompts) RenderGrammar(params GrammarParams) (string, error) {
	return render(p.Grammar.Question, params)
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}
