package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	exportOut  string
	exportLink bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find orders by name, phone, order number or product",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return printResponse(cmd, pipeline.Search(cmd.Context(), strings.Join(args, " ")))
	},
}

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "List the products ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return printResponse(cmd, pipeline.Stock(cmd.Context()))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sales statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return printResponse(cmd, pipeline.Stats(cmd.Context()))
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the orders ledger",
	Long: `Write the orders ledger to --out (stdout by default). With --link the
file is uploaded to object storage and a presigned download link is printed.`,
	RunE: runExport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the ledgers to object storage",
	RunE:  runBackup,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Destination file (default stdout)")
	exportCmd.Flags().BoolVar(&exportLink, "link", false, "Upload to object storage and print a download link")
}

func runExport(cmd *cobra.Command, args []string) error {
	pipeline, err := newPipeline(cmd.Context())
	if err != nil {
		return err
	}

	if exportLink {
		backup, err := newBackup(cmd.Context(), pipeline.Store())
		if err != nil {
			return err
		}
		if backup == nil {
			return errors.New("object storage is disabled (minio.enabled)")
		}
		url, err := backup.ExportURL(cmd.Context())
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	}

	resp := pipeline.Export(cmd.Context())
	if resp.Err != nil {
		return printResponse(cmd, resp)
	}

	if exportOut == "" {
		_, err := cmd.OutOrStdout().Write(resp.File)
		return err
	}
	if err := os.WriteFile(exportOut, resp.File, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", resp.Text, exportOut)
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	pipeline, err := newPipeline(cmd.Context())
	if err != nil {
		return err
	}
	backup, err := newBackup(cmd.Context(), pipeline.Store())
	if err != nil {
		return err
	}
	if backup == nil {
		return errors.New("object storage is disabled (minio.enabled)")
	}

	objects, err := backup.Backup(cmd.Context())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	for _, name := range objects {
		fmt.Fprintln(cmd.OutOrStdout(), backup.PublicURL(name))
	}
	return nil
}
