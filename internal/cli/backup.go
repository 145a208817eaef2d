package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database to a JSON file",
		Long: `Export every table to a JSON backup.

Examples:
  usos-admin export
  usos-admin export --output backups/usos.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return WrapExitError(ExitCommandError, "failed to create output directory", err)
				}
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Create(outputPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create backup file", err)
			}
			defer f.Close()

			backup, err := a.Backup.ExportToWriter(cmd.Context(), f)
			if err != nil {
				return failed("export failed", err)
			}
			if err := f.Close(); err != nil {
				return WrapExitError(ExitCommandError, "failed to write backup file", err)
			}

			return opts.output(cmd).Success(map[string]any{"path": outputPath, "counts": backup.Counts()},
				fmt.Sprintf("Exported database to %s", outputPath))
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var (
		inputPath string
		clearData bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON backup",
		Long: `Import a backup written by export. Rows are added to the existing data
unless --clear is given, which deletes everything first.

Examples:
  usos-admin import --input backup.json
  usos-admin import --input backup.json --clear --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(inputPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open backup file", err)
			}
			defer f.Close()

			if clearData && !yes && !confirm(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
				fmt.Fprintln(cmd.ErrOrStderr(), "Import cancelled")
				return nil
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			backup, err := a.Backup.ImportFromReader(cmd.Context(), f, clearData)
			if err != nil {
				return failed("import failed", err)
			}
			return opts.output(cmd).Success(backup.Counts(), fmt.Sprintf("Imported %s", inputPath))
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "backup file path (required)")
	cmd.Flags().BoolVar(&clearData, "clear", false, "delete existing data before import (destructive)")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
