package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"langtutor/internal/app"
	"langtutor/internal/dialogue"
)

var (
	genTopic     string
	genContext   string
	genLevel     string
	genExchanges int
	genFormat    string
	genOutput    string
	genAudio     bool
	genComplete  bool
	genVoice     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single dialogue",
	Long: `Generate one practice dialogue and print it, or write it to --output.
With --audio every message is voiced; --complete also joins them into one file.`,
	Example: `  langtutor generate -t "Au restaurant" -l intermediate
  langtutor generate -t "À la gare" -n 6 -f md -o gare.md --audio`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genTopic, "topic", "t", "", "Topic of the dialogue")
	generateCmd.Flags().StringVar(&genContext, "context", "", "Extra context for the scene")
	generateCmd.Flags().StringVarP(&genLevel, "level", "l", string(dialogue.LevelBeginner), "beginner, intermediate or advanced")
	generateCmd.Flags().IntVarP(&genExchanges, "exchanges", "n", 0, "Number of exchanges (default min(max_dialogue_length, 8))")
	generateCmd.Flags().StringVarP(&genFormat, "format", "f", "txt", "Output format: txt, json, csv or md")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write to this file instead of stdout")
	generateCmd.Flags().BoolVar(&genAudio, "audio", false, "Generate audio for every message")
	generateCmd.Flags().BoolVar(&genComplete, "complete", false, "Also join the message audio into one file")
	generateCmd.Flags().StringVar(&genVoice, "voice", "", "Use this provider voice for every message")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if genTopic == "" {
		return errors.New("please provide --topic")
	}

	ctx := cmd.Context()

	_, svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	d, err := svc.GenerateDialogue(ctx, app.GenerateParams{
		Topic:     genTopic,
		Context:   genContext,
		Level:     genLevel,
		Exchanges: genExchanges,
	})
	if err != nil {
		return err
	}

	var opts []app.AudioOption
	if genVoice != "" {
		opts = append(opts, app.WithVoice(genVoice))
	}
	if genAudio || genComplete {
		n, err := svc.GenerateDialogueAudio(ctx, d, opts...)
		if err != nil {
			return err
		}
		slog.Info("Audio generated", "files", n, "dir", svc.Library().AudioDir())
	}
	if genComplete {
		path, err := svc.GenerateCompleteAudio(ctx, d, opts...)
		if err != nil {
			return err
		}
		slog.Info("Complete audio written", "path", path)
	}

	data, err := dialogue.Export(d, genFormat)
	if err != nil {
		return err
	}

	if genOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(genOutput, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", genOutput, err)
	}

	stats := d.Stats()
	slog.Info("Dialogue generated",
		"title", stats.Title,
		"messages", stats.TotalMessages,
		"path", genOutput)
	return nil
}
