// Package cli implements the HomeSoil command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "homesoil",
	Short: "HomeSoil — IoT sensor/actuator gateway",
	Long: `HomeSoil bridges CoAP-speaking field devices and a dashboard of
operators: it registers sensors and actuators, ingests telemetry, probes
liveness, and runs operator-authored automation scripts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
