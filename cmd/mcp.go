package cmd

import (
	"github.com/spf13/cobra"

	pmomcp "github.com/joescharf/pmo/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant list, inspect, edit, approve, and reject reviews.
Configure in Claude Code with:

  {
    "mcpServers": {
      "pmo": { "command": "pmo", "args": ["mcp"] }
    }
  }

Available tools: pmo_list_reviews, pmo_show_review, pmo_update_review,
pmo_approve_review, pmo_reject_review, pmo_submit_content, pmo_health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getService()
		if err != nil {
			return err
		}
		// stdout carries the protocol; keep verbose logging off it.
		ui.Out = ui.ErrOut
		return pmomcp.NewServer(svc, previewLength()).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
