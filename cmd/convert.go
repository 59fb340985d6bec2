package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"langtutor/internal/app"
	"langtutor/internal/dialogue"
	"langtutor/internal/storage"
	"langtutor/pkg/config"
)

var (
	convertTo     string
	convertOutput string
	convertList   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file|gs://bucket/object>",
	Short: "Re-export a dialogue file in another format",
	Long: `Parse a TXT, JSON, CSV or Markdown dialogue and write it in another format.
The input may be an archived export given as a gs:// URL. --list shows the
archive configured with LANG_TUTOR_GCS_BUCKET.`,
	Example: `  langtutor convert cafe.txt --to json
  langtutor convert gs://my-bucket/langtutor/cafe_20250101_120000.md --to csv -o cafe.csv
  langtutor convert --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if convertList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "json", "Target format: txt, json, csv or md")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file (default: input name with the new extension, - for stdout)")
	convertCmd.Flags().BoolVar(&convertList, "list", false, "List archived objects instead of converting")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if convertList {
		return listArchive(ctx, cfg)
	}

	input := args[0]
	content, name, err := readDialogueInput(ctx, cfg, input)
	if err != nil {
		return err
	}

	d, err := dialogue.ParseFile(content, name)
	if err != nil {
		return err
	}
	data, err := dialogue.Export(d, convertTo)
	if err != nil {
		return err
	}

	out := convertOutput
	if out == "" {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		out = base + dialogue.NormalizeFormat(convertTo)
	}
	if out == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s → %s (%d messages)", input, out, len(d.Messages))))
	return nil
}

func readDialogueInput(ctx context.Context, cfg *config.Config, input string) ([]byte, string, error) {
	bucket, object, ok := storage.ParseGSURL(input)
	if !ok {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", input, err)
		}
		return data, filepath.Base(input), nil
	}

	archiver, err := storage.NewGCSArchiver(ctx, bucket, "", app.GoogleOptions(cfg)...)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = archiver.Close() }()

	slog.Debug("Fetching archived dialogue", "bucket", bucket, "object", object)
	data, err := archiver.Fetch(ctx, input)
	if err != nil {
		return nil, "", err
	}
	return data, path.Base(object), nil
}

func listArchive(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.GCSBucket == "" {
		return errors.New("no archive configured, set LANG_TUTOR_GCS_BUCKET")
	}

	archiver, err := storage.NewGCSArchiver(ctx, cfg.Storage.GCSBucket, cfg.Storage.ArchivePrefix, app.GoogleOptions(cfg)...)
	if err != nil {
		return err
	}
	defer func() { _ = archiver.Close() }()

	objects, err := archiver.List(ctx)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		fmt.Println(infoStyle.Render("Archive is empty"))
		return nil
	}
	for _, obj := range objects {
		fmt.Printf("gs://%s/%s\t%d\t%s\n", cfg.Storage.GCSBucket, obj.Name, obj.Size, obj.Updated.Format("2006-01-02 15:04"))
	}
	return nil
}
