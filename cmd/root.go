package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/pkg/logger"
	"github.com/AnTengye/orderledger/service"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "orderledger",
	Short: "Order extraction and ledger tool for Kufar chats",
	Long: `orderledger turns pasted Kufar chat text, screenshots and manual
entries into numbered orders stored in CSV ledgers. It runs as an HTTP
service (serve) or as a one-shot command against the local ledgers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(manualCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
}

func loadConfig() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	slog.Debug("configuration loaded", "path", configPath, "ledger_dir", cfg.Ledger.Dir)
	return nil
}

// newPipeline opens the ledgers and the configured AI extractor.
func newPipeline(ctx context.Context) (*service.Pipeline, error) {
	ai, err := service.NewAIExtractor(ctx, &cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI extractor: %w", err)
	}
	if ai == nil {
		slog.Info("AI extraction disabled, using heuristics only")
	}

	store := service.NewLedgerStore(&cfg.Ledger)
	pipeline, err := service.NewPipeline(store, ai, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledgers: %w", err)
	}
	return pipeline, nil
}

// newBackup returns nil when object storage is disabled.
func newBackup(ctx context.Context, store *service.LedgerStore) (*service.BackupService, error) {
	if !cfg.Minio.Enabled {
		return nil, nil
	}

	backup, err := service.NewBackupService(&cfg.Minio, store, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if err := backup.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return backup, nil
}

// printResponse writes the operator text and turns a failed response into
// a command error.
func printResponse(cmd *cobra.Command, resp *service.Response) error {
	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	return resp.Err
}
