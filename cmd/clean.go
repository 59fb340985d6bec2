package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"langtutor/internal/dialogue"
	"langtutor/internal/storage"
)

var (
	cleanKeep     int
	cleanAll      bool
	cleanDialogue string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Trim the audio library",
	Long: `Delete old files from the audio library, keeping the newest ones
(max_library_files by default). --dialogue removes every file of one dialogue.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().IntVarP(&cleanKeep, "keep", "k", 0, "Number of files to keep (default max_library_files)")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Delete every audio file")
	cleanCmd.Flags().StringVar(&cleanDialogue, "dialogue", "", "Delete the audio of this dialogue id only")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	library := storage.NewLibrary(cfg.Storage.AudioDir, cfg.Storage.ExportDir)

	if cleanDialogue != "" {
		count := library.DeleteDialogueAudio(&dialogue.Dialogue{ID: cleanDialogue})
		fmt.Printf("Deleted %d file(s) of dialogue %s\n", count, cleanDialogue)
		return nil
	}

	keep := cfg.Storage.MaxLibraryFiles
	switch {
	case cleanAll:
		keep = 0
	case cleanKeep > 0:
		keep = cleanKeep
	}

	count, err := library.Cleanup(keep)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d audio file(s) from %s, kept at most %d\n", count, library.AudioDir(), keep)
	return nil
}
