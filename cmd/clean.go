package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrule/hoard/internal/download"
	"github.com/ferrule/hoard/internal/output"
)

func newCleanCmd() *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "clean [--output DIR]",
		Short: "Remove partial downloads you don't intend to resume",
		Run: func(cmd *cobra.Command, args []string) {
			cat, err := loadCatalog()
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to load catalog: %v", err))
				os.Exit(1)
			}
			removed, err := download.CleanPartials(cat, destDir)
			if err != nil {
				output.PrintError(fmt.Sprintf("Clean failed: %v", err))
				os.Exit(1)
			}
			if len(removed) == 0 {
				output.PrintInfo("No partial files found")
				return
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d partial file(s)", len(removed)))
		},
	}

	cmd.Flags().StringVarP(&destDir, "output", "o", "downloads", "Destination directory to scan")
	return cmd
}
