package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Ingest a CSV file synchronously and print the final progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			progress, runErr := a.ingestion.Import(cmd.Context(), filepath.Base(file), content)
			if progress != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(progress); err != nil {
					return fmt.Errorf("failed to print progress: %w", err)
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
