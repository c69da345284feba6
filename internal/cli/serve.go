package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/neriamosgionata/homesoil/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HomeSoil gateway",
	Long:  `Start the CoAP gateway, dashboard event bus, liveness prober, and retention sweeper.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	return d.Serve(context.Background())
}
