package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"langtutor/pkg/config"
)

var validateConnect bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Load .env, config.yaml and LANG_TUTOR_* variables and report every
problem. --connect also builds the provider clients.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateConnect, "connect", false, "Also create the provider clients")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("langtutor configuration"))
	printSetting("LLM provider", cfg.LLMProvider)
	printSetting("TTS provider", cfg.TTSProvider)
	printSetting("STT provider", cfg.STTProvider)
	printSetting("Audio format", cfg.AudioOutputFormat)
	printSetting("Voice gender", cfg.DefaultVoiceGender)
	printSetting("Max dialogue length", fmt.Sprint(cfg.MaxDialogueLength))
	printSetting("Request timeout", cfg.RequestTimeout.String())
	printSetting("Audio directory", cfg.Storage.AudioDir)
	if cfg.Storage.GCSBucket != "" {
		printSetting("Archive", "gs://"+cfg.Storage.GCSBucket+"/"+cfg.Storage.ArchivePrefix)
	}
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			for _, p := range cerr.Problems {
				fmt.Println(warnStyle.Render("✗ " + p))
			}
		}
		return err
	}
	fmt.Println(successStyle.Render("✓ Configuration is valid"))

	if !validateConnect {
		return nil
	}

	return runWithSpinner("Creating provider clients", func() error {
		_, svc, err := loadService(ctx)
		if err != nil {
			return err
		}
		return svc.Close()
	})
}

func printSetting(name, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Printf("  %-20s %s\n", name+":", infoStyle.Render(value))
}
