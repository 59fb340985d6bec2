package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRunSetupWithoutTerminal(t *testing.T) {
	tests := []struct {
		name   string
		sample bool
	}{
		{name: "default", sample: false},
		{name: "sampleOnly", sample: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)

			prev := interactive
			interactive = func() bool {
				t.Error("wizard prompted without a terminal")
				return false
			}
			if !tt.sample {
				interactive = func() bool { return false }
			}
			t.Cleanup(func() { interactive = prev })

			setupSample = tt.sample
			setupSamplePath = ".env.sample"
			setupEnvPath = ".env"
			configPath = filepath.Join(dir, "missing.yaml")

			cmd := &cobra.Command{}
			cmd.SetContext(context.Background())
			if err := runSetup(cmd, nil); err != nil {
				t.Fatalf("runSetup() error = %v", err)
			}

			data, err := os.ReadFile(filepath.Join(dir, ".env.sample"))
			if err != nil {
				t.Fatalf("sample not written: %v", err)
			}
			if !strings.Contains(string(data), "LANG_TUTOR_GCP_PROJECT=") {
				t.Errorf("sample missing options:\n%s", data)
			}
			for _, sub := range []string{"audio_output", "output"} {
				if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
					t.Errorf("directory %s not created: %v", sub, err)
				}
			}
			if _, err := os.Stat(filepath.Join(dir, ".env")); !os.IsNotExist(err) {
				t.Errorf(".env written without the wizard (err = %v)", err)
			}
		})
	}
}
