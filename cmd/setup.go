package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"langtutor/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var (
	setupSample     bool
	setupEnvPath    string
	setupSamplePath string
)

// interactive reports whether the wizard can prompt on stdin.
var interactive = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the sample configuration and run the setup wizard",
	Long: `Write .env.sample with every option and create the audio and export
directories. On a terminal the wizard then asks for providers and API keys and
writes them to .env; --sample stops after the sample file.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupSample, "sample", false, "Only write the sample file and directories, skip the wizard")
	setupCmd.Flags().StringVar(&setupEnvPath, "env", ".env", "File the wizard writes")
	setupCmd.Flags().StringVar(&setupSamplePath, "sample-path", ".env.sample", "Sample file to write")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("🇫🇷 langtutor setup"))

	if err := config.WriteSample(setupSamplePath); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Created " + setupSamplePath))

	if err := createDirectories(cmd.Context()); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	if setupSample {
		return nil
	}
	if !interactive() {
		fmt.Println(infoStyle.Render("stdin is not a terminal, skipping the wizard: copy " + setupSamplePath + " to " + setupEnvPath + " and fill it in"))
		return nil
	}

	if err := configureEnv(); err != nil {
		return fmt.Errorf("configuring environment: %w", err)
	}
	return nil
}

func createDirectories(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.Storage.AudioDir, cfg.Storage.ExportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Println(successStyle.Render("✓ Created directories"))
	return nil
}

func configureEnv() error {
	if _, err := os.Stat(setupEnvPath); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing " + setupEnvPath + " file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing " + setupEnvPath))
			return nil
		}
	}

	env := make(map[string]string)

	if err := configureLLM(env); err != nil {
		return err
	}
	if err := configureTTS(env); err != nil {
		return err
	}
	if err := configureSTT(env); err != nil {
		return err
	}
	if err := configureGCP(env); err != nil {
		return err
	}

	if err := config.WriteEnv(setupEnvPath, env); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Created " + setupEnvPath))
	printNextSteps()
	return nil
}

var llmKeys = map[string]struct{ key, url string }{
	"openai":   {"OPENAI_API_KEY", "https://platform.openai.com/api-keys"},
	"gemini":   {"GEMINI_API_KEY", "https://aistudio.google.com/app/apikey"},
	"groq":     {"GROQ_API_KEY", "https://console.groq.com/keys"},
	"deepseek": {"DEEPSEEK_API_KEY", "https://platform.deepseek.com/api_keys"},
}

func configureLLM(env map[string]string) error {
	provider := "openai"
	if err := huh.NewSelect[string]().
		Title("LLM provider").
		Description("Writes the dialogues and answers in practice mode").
		Options(providerOptions(config.LLMProviders)...).
		Value(&provider).
		Run(); err != nil {
		return err
	}
	env["LLM_PROVIDER"] = provider

	k := llmKeys[provider]
	var apiKey string
	if err := huh.NewInput().
		Title(strings.ToUpper(provider) + " API key").
		Description(k.url).
		EchoMode(huh.EchoModePassword).
		Value(&apiKey).
		Validate(required("API key")).
		Run(); err != nil {
		return err
	}
	env[k.key] = strings.TrimSpace(apiKey)
	return nil
}

func configureTTS(env map[string]string) error {
	provider := "gtts"
	format := "mp3"
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Text-to-speech provider").
				Description("gtts needs no key; silent writes silence for offline use").
				Options(providerOptions(config.TTSProviders)...).
				Value(&provider),
			huh.NewSelect[string]().
				Title("Audio format").
				Options(providerOptions(config.AudioFormats)...).
				Value(&format),
		),
	).Run(); err != nil {
		return err
	}
	env["TTS_PROVIDER"] = provider
	env["AUDIO_OUTPUT_FORMAT"] = format

	switch provider {
	case "google_cloud":
		return askCredentialsPath(env)
	case "azure":
		var key, region string
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Azure Speech key").
					EchoMode(huh.EchoModePassword).
					Value(&key).
					Validate(required("Azure Speech key")),
				huh.NewInput().
					Title("Azure region").
					Placeholder("westeurope").
					Value(&region).
					Validate(required("Azure region")),
			),
		).Run(); err != nil {
			return err
		}
		env["AZURE_SPEECH_KEY"] = strings.TrimSpace(key)
		env["AZURE_SPEECH_REGION"] = strings.TrimSpace(region)
	case "elevenlabs":
		var key string
		if err := huh.NewInput().
			Title("ElevenLabs API key").
			Description("https://elevenlabs.io/app/settings/api-keys").
			EchoMode(huh.EchoModePassword).
			Value(&key).
			Validate(required("ElevenLabs API key")).
			Run(); err != nil {
			return err
		}
		env["ELEVENLABS_API_KEY"] = strings.TrimSpace(key)
	case "whisperspeech":
		url := "http://localhost:8030"
		if err := huh.NewInput().
			Title("WhisperSpeech server URL").
			Value(&url).
			Run(); err != nil {
			return err
		}
		env["WHISPERSPEECH_URL"] = strings.TrimSpace(url)
	}
	return nil
}

func configureSTT(env map[string]string) error {
	provider := "none"
	if err := huh.NewSelect[string]().
		Title("Speech recognition for voice input").
		Options(providerOptions(config.STTProviders)...).
		Value(&provider).
		Run(); err != nil {
		return err
	}
	env["STT_PROVIDER"] = provider

	switch provider {
	case "google_cloud":
		if _, ok := env["GOOGLE_CLOUD_CREDENTIALS_PATH"]; !ok {
			return askCredentialsPath(env)
		}
	case "openai":
		if _, ok := env["OPENAI_API_KEY"]; ok {
			return nil
		}
		var key string
		if err := huh.NewInput().
			Title("OpenAI API key for Whisper").
			EchoMode(huh.EchoModePassword).
			Value(&key).
			Validate(required("OpenAI API key")).
			Run(); err != nil {
			return err
		}
		env["OPENAI_API_KEY"] = strings.TrimSpace(key)
	}
	return nil
}

func askCredentialsPath(env map[string]string) error {
	var path string
	if err := huh.NewInput().
		Title("Google Cloud service account file").
		Description("Leave empty to use application default credentials").
		Placeholder("credentials.json").
		Value(&path).
		Validate(func(s string) error {
			if s = strings.TrimSpace(s); s == "" {
				return nil
			}
			if _, err := os.Stat(s); err != nil {
				return fmt.Errorf("cannot read %s", s)
			}
			return nil
		}).
		Run(); err != nil {
		return err
	}
	env["GOOGLE_CLOUD_CREDENTIALS_PATH"] = strings.TrimSpace(path)
	return nil
}

func configureGCP(env map[string]string) error {
	var setupGCP bool
	if err := huh.NewConfirm().
		Title("Use a Google Cloud project?").
		Description("Optional: API keys from Secret Manager and export archiving to Cloud Storage").
		Value(&setupGCP).
		Run(); err != nil {
		return err
	}
	if !setupGCP {
		return nil
	}

	project := getActiveProject()
	var bucket string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project ID").
				Value(&project).
				Validate(required("Project ID")),
			huh.NewInput().
				Title("Archive bucket").
				Description("Leave empty to keep exports local only").
				Value(&bucket),
		),
	).Run(); err != nil {
		return err
	}
	project = strings.TrimSpace(project)
	env["GCP_PROJECT"] = project
	env["GCS_BUCKET"] = strings.TrimSpace(bucket)

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found, enable the APIs from the console"))
		return nil
	}
	if err := enableGCPAPIs(project); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}
	return nil
}

func getActiveProject() string {
	if !commandExists("gcloud") {
		return ""
	}
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"secretmanager.googleapis.com",
		"storage.googleapis.com",
		"texttospeech.googleapis.com",
		"speech.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Check the configuration: langtutor validate")
	fmt.Println("  2. Try a dialogue: langtutor generate -t \"Au café\"")
	fmt.Println("  3. Open the practice UI: langtutor run")
}

func providerOptions(values []string) []huh.Option[string] {
	return huh.NewOptions(values...)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
