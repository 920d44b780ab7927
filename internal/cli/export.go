package cli

import (
	"github.com/spf13/cobra"

	"listing-backtest/internal/app"
)

var exportPNGPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the backtest report as a P&L chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath: exportPNGPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
}
