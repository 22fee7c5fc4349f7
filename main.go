package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slopesentry",
	Short: "Landslide early-warning backend for a single monitored slope",
	Long: `slopesentry ingests rain, soil moisture and tilt readings from a slope
station, scores each one for landslide risk and serves the results to the
dashboard.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
