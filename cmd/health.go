package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/pmo/internal/output"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the PM Orchestration service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return healthRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func healthRun(ctx context.Context) error {
	gw, err := getGateway()
	if err != nil {
		return err
	}

	ui.VerboseLog("Checking %s", gw.BaseURL())
	h, err := gw.HealthCheck(ctx)
	if err != nil {
		return err
	}

	ui.Success("Service reachable at %s", gw.BaseURL())
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.HealthColor(h.Status))
	fmt.Fprintf(ui.Out, "  Database:   %s\n", output.HealthColor(h.Database))
	if h.Timestamp != "" {
		fmt.Fprintf(ui.Out, "  Timestamp:  %s\n", h.Timestamp)
	}
	return nil
}
