package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"langtutor/internal/web"
)

var runAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the web UI",
	Long: `Start the local web UI with the Generate, Import, Practice and Audio Library
tabs. The server stops on Ctrl+C.`,
	RunE: runServer,
}

func init() {
	runCmd.Flags().StringVarP(&runAddr, "addr", "a", "", "Listen address (default from config, 127.0.0.1:7860)")
	rootCmd.AddCommand(runCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to close providers", "error", err)
		}
	}()

	srv, err := web.NewServer(svc, web.Options{
		SessionTTL:    cfg.Server.SessionTTL,
		MaxConcurrent: cfg.MaxConcurrentRequests,
		Quiet:         !verbose,
	})
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if runAddr != "" {
		addr = runAddr
	}

	slog.Info("Starting web UI",
		"llm", cfg.LLMProvider,
		"tts", cfg.TTSProvider,
		"stt", cfg.STTProvider,
		"max_concurrent", cfg.MaxConcurrentRequests,
		"audio_dir", svc.Library().AudioDir(),
		"export_dir", svc.Library().ExportDir())

	return srv.Start(ctx, addr)
}
