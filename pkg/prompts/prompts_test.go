package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()

	if !strings.Contains(p.System.Tutor, "tuteur de français") {
		t.Errorf("System.Tutor = %q, want the French tutor prompt", p.System.Tutor)
	}
	if !strings.Contains(p.System.Grammar, "English") {
		t.Errorf("System.Grammar = %q, want an English answer instruction", p.System.Grammar)
	}
	if p.Dialogue.Continue == "" {
		t.Error("Dialogue.Continue is empty")
	}
}

func TestLoadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	promptsPath := filepath.Join(tmpDir, "custom.yaml")

	promptsContent := `
dialogue:
  generate: "Dialogue sur {{.Topic}} ({{.Exchanges}})"
`
	if err := os.WriteFile(promptsPath, []byte(promptsContent), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFrom(promptsPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	got, err := p.RenderDialogue(DialogueParams{Topic: "la météo", Exchanges: 4})
	if err != nil {
		t.Fatalf("RenderDialogue() error = %v", err)
	}
	if got != "Dialogue sur la météo (4)" {
		t.Errorf("RenderDialogue() = %q", got)
	}
	if p.System.Tutor != Default().System.Tutor {
		t.Error("System.Tutor was not filled from the defaults")
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFrom() error = nil, want error")
	}
}

func TestLoadFromEmptyPath(t *testing.T) {
	p, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if p.Dialogue.Generate == "" {
		t.Error("Dialogue.Generate is empty")
	}
}

func TestRenderTutor(t *testing.T) {
	p := Default()

	tests := []struct {
		name        string
		params      TutorParams
		wantContext bool
	}{
		{name: "withContext", params: TutorParams{Level: "advanced", Context: "Entretien d'embauche"}, wantContext: true},
		{name: "withoutContext", params: TutorParams{Level: "beginner"}, wantContext: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.RenderTutor(tt.params)
			if err != nil {
				t.Fatalf("RenderTutor() error = %v", err)
			}
			if !strings.Contains(got, "Niveau: "+tt.params.Level) {
				t.Errorf("RenderTutor() missing level line:\n%s", got)
			}
			if has := strings.Contains(got, "Contexte du dialogue"); has != tt.wantContext {
				t.Errorf("context line present = %v, want %v", has, tt.wantContext)
			}
		})
	}
}

func TestRenderDialogue(t *testing.T) {
	got, err := Default().RenderDialogue(DialogueParams{Topic: "Au restaurant", Level: "beginner", Exchanges: 6})
	if err != nil {
		t.Fatalf("RenderDialogue() error = %v", err)
	}
	for _, want := range []string{"Au restaurant", "6 échanges", "Personne A:", "niveau beginner"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderDialogue() missing %q", want)
		}
	}
}

func TestRenderGrammar(t *testing.T) {
	got, err := Default().RenderGrammar(GrammarParams{Question: "Quand utiliser le subjonctif ?"})
	if err != nil {
		t.Fatalf("RenderGrammar() error = %v", err)
	}
	if got != "Question: Quand utiliser le subjonctif ?" {
		t.Errorf("RenderGrammar() = %q", got)
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	p := &Prompts{Grammar: GrammarPrompts{Question: "{{.Question"}}
	if _, err := p.RenderGrammar(GrammarParams{Question: "x"}); err == nil {
		t.Error("RenderGrammar() error = nil, want parse error")
	}
}
