package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/view"
)

var (
	exportFormat string
	exportStatus string
	exportCached bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reviews as JSON, CSV, or Markdown",
	Long:  "Export the review list with previews and content stats in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Filter by status")
	exportCmd.Flags().BoolVar(&exportCached, "cached", false, "Export the local cache without contacting the service")
	rootCmd.AddCommand(exportCmd)
}

func exportRun(ctx context.Context) error {
	switch exportFormat {
	case "json", "csv", "markdown":
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", exportFormat)
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	filter := store.ReviewFilter{Status: models.ReviewStatus(exportStatus)}
	var reviews []*models.Review
	if exportCached {
		reviews, err = svc.ListCached(ctx, filter)
	} else {
		reviews, err = svc.List(ctx, filter)
	}
	if err != nil {
		return err
	}

	return exportReviews(view.ProjectAll(reviews, previewLength()))
}

func exportReviews(summaries []view.Summary) error {
	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Status", "Source", "Type", "Preview", "Stats", "Edited", "Tickets", "Created"})
		for _, s := range summaries {
			_ = w.Write([]string{
				s.ID, string(s.Status), string(s.Source), string(s.Type), s.Preview, s.Stats,
				strconv.FormatBool(s.Edited), strings.Join(s.Tickets, " "), s.CreatedAt.Format(time.RFC3339),
			})
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Fprintln(ui.Out, "# Reviews")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Status | Source | Preview | Stats | Tickets |")
		fmt.Fprintln(ui.Out, "|----|--------|--------|---------|-------|---------|")
		for _, s := range summaries {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s | %s |\n",
				s.ShortID, s.StatusLabel, s.SourceLabel, markdownCell(s.Preview), s.Stats, strings.Join(s.Tickets, ", "))
		}
		return nil
	}
}

// markdownCell keeps a value on one table row.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
