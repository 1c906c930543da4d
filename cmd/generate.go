package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/pmo/internal/output"
	"github.com/joescharf/pmo/internal/view"
)

var (
	generateFile    string
	generateContext string
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Submit source text for ticket generation",
	Long: `Submit meeting notes, a brief, or any other source text to the
PM Orchestration service. The service generates an initiative with epics
and stories and stores it as a new pending review.

Text is taken from the argument, from --file, or from stdin with --file -.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ""
		if len(args) == 1 {
			text = args[0]
		}
		return generateRun(cmd.Context(), text)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateFile, "file", "", "Read source text from a file ('-' for stdin)")
	generateCmd.Flags().StringVar(&generateContext, "context", "", "Additional context for generation")
	rootCmd.AddCommand(generateCmd)
}

func generateRun(ctx context.Context, text string) error {
	if generateFile != "" {
		if text != "" {
			return fmt.Errorf("pass source text as an argument or with --file, not both")
		}
		data, err := readInput(generateFile)
		if err != nil {
			return err
		}
		text = data
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("source text is required")
	}

	if dryRun {
		ui.DryRunMsg("Would submit %d characters for generation", len([]rune(text)))
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	id, err := svc.Submit(ctx, text, generateContext)
	if err != nil {
		return err
	}
	ui.Success("Submitted for generation: review %s", output.Cyan(view.ShortID(id)))
	ui.Info("Run 'pmo review show %s' once generation completes", view.ShortID(id))
	return nil
}
