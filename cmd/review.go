package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/output"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/view"
	"github.com/joescharf/pmo/internal/workflow"
)

var (
	reviewStatus string
	reviewLimit  int
	reviewCached bool
	reviewFormat string
	reviewFile   string
	reviewReason string
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"r"},
	Short:   "List, inspect, and decide on reviews",
}

var reviewListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewListRun(cmd.Context())
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a review's content, progress, and available actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewShowRun(cmd.Context(), args[0])
	},
}

var reviewEditCmd = &cobra.Command{
	Use:   "edit <review-id>",
	Short: "Edit a pending review's content in $EDITOR or from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewEditRun(cmd.Context(), args[0])
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Approve a pending review and create its Jira tickets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewApproveRun(cmd.Context(), args[0])
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <review-id>",
	Short: "Reject a pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRejectRun(cmd.Context(), args[0])
	},
}

var reviewHistoryCmd = &cobra.Command{
	Use:   "history <review-id>",
	Short: "Show the local log of actions taken on a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewHistoryRun(cmd.Context(), args[0])
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewStatus, "status", "", "Filter by status: pending, approved, rejected, created")
	reviewListCmd.Flags().IntVar(&reviewLimit, "limit", 0, "Maximum number of reviews to show")
	reviewListCmd.Flags().BoolVar(&reviewCached, "cached", false, "Show the local cache without contacting the service")

	reviewShowCmd.Flags().StringVarP(&reviewFormat, "format", "f", "text", "Output format: text, json, yaml")

	reviewEditCmd.Flags().StringVar(&reviewFile, "file", "", "Read edited JSON from a file ('-' for stdin) instead of opening $EDITOR")

	reviewRejectCmd.Flags().StringVar(&reviewReason, "reason", "", "Why the content was rejected")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewEditCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewCmd.AddCommand(reviewHistoryCmd)
	rootCmd.AddCommand(reviewCmd)
}

func previewLength() int {
	if n := viper.GetInt("preview.max_length"); n > 0 {
		return n
	}
	return content.DefaultPreviewLength
}

func reviewListRun(ctx context.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	filter := store.ReviewFilter{Status: models.ReviewStatus(reviewStatus), Limit: reviewLimit}

	var reviews []*models.Review
	if reviewCached {
		reviews, err = svc.ListCached(ctx, filter)
	} else {
		reviews, err = svc.List(ctx, filter)
	}
	if err != nil {
		return err
	}

	if len(reviews) == 0 {
		ui.Info("No reviews found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Source", "Preview", "Stats", "Created"})
	for _, s := range view.ProjectAll(reviews, previewLength()) {
		preview := s.Preview
		if s.Edited {
			preview = "* " + preview
		}
		_ = table.Append([]string{
			s.ShortID,
			output.StatusColor(string(s.Status)),
			s.SourceLabel,
			preview,
			s.Stats,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func reviewShowRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	r, err := svc.Resolve(ctx, id)
	if err != nil {
		return err
	}
	d := view.Describe(r, previewLength())

	switch reviewFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		return writeYAML(ui.Out, d)
	case "text", "":
		printDetail(ui.Out, d)
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: text, json, yaml)", reviewFormat)
	}
}

// writeYAML renders v through its JSON form so field names match the JSON output.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func printDetail(w io.Writer, d view.Detail) {
	r := d.Review
	fmt.Fprintf(w, "%s  %s\n", output.Cyan(d.ShortID), d.Preview)
	fmt.Fprintf(w, "  ID:         %s\n", r.ID)
	fmt.Fprintf(w, "  Status:     %s\n", output.StatusColor(string(r.Status)))
	fmt.Fprintf(w, "  Source:     %s\n", d.SourceLabel)
	fmt.Fprintf(w, "  Type:       %s\n", r.Type)
	if d.Stats != "" {
		fmt.Fprintf(w, "  Stats:      %s\n", d.Stats)
	}
	if d.Edited {
		fmt.Fprintf(w, "  Edited:     %s\n", output.Yellow("yes"))
	}
	if len(r.TicketReferences) > 0 {
		fmt.Fprintf(w, "  Tickets:    %s\n", r.TicketReferences.String())
	}
	if r.OutputLocation != "" {
		fmt.Fprintf(w, "  Output:     %s\n", r.OutputLocation)
	}
	if r.CreatedBy != "" {
		fmt.Fprintf(w, "  By:         %s\n", r.CreatedBy)
	}
	fmt.Fprintf(w, "  Created:    %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.ReviewedAt != nil {
		fmt.Fprintf(w, "  Reviewed:   %s\n", r.ReviewedAt.Format(time.RFC3339))
	}
	if r.AdditionalContext != "" {
		fmt.Fprintf(w, "  Context:    %s\n", r.AdditionalContext)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Progress")
	progress := &output.UI{Out: w}
	progress.Progress(d.Progress)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Content")
	if d.ContentError != "" {
		fmt.Fprintf(w, "  %s\n", output.Red(d.ContentError))
	} else {
		printCanonical(w, d.Content)
	}

	if len(d.Actions) > 0 {
		names := make([]string, len(d.Actions))
		for i, a := range d.Actions {
			names[i] = string(a)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Actions: %s\n", strings.Join(names, ", "))
	}
}

func printCanonical(w io.Writer, c *content.Canonical) {
	ini := c.Initiative
	fmt.Fprintf(w, "  Initiative: %s\n", withKey(ini.Key, ini.Summary))
	if ini.Description != "" {
		fmt.Fprintf(w, "    %s\n", ini.Description)
	}
	if len(ini.Stakeholders) > 0 {
		fmt.Fprintf(w, "    Stakeholders: %s\n", strings.Join(ini.Stakeholders, ", "))
	}

	for i, epic := range ini.Epics {
		fmt.Fprintf(w, "  Epic %d: %s\n", i+1, withKey(epic.Key, epic.Summary))
		if epic.Description != "" {
			fmt.Fprintf(w, "    %s\n", epic.Description)
		}
		for _, story := range epic.Stories {
			line := fmt.Sprintf("As a %s, I want %s, so that %s", story.AsA, story.IWant, story.SoThat)
			fmt.Fprintf(w, "    - %s\n", withKey(story.Key, line))
			for _, ac := range story.AcceptanceCriteria {
				fmt.Fprintf(w, "        * %s\n", ac)
			}
		}
	}

	if len(c.StakeholderContext) > 0 {
		keys := make([]string, 0, len(c.StakeholderContext))
		for k := range c.StakeholderContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "  Stakeholder context:")
		for _, k := range keys {
			fmt.Fprintf(w, "    %s: %s\n", k, c.StakeholderContext[k])
		}
	}
	if c.ReadyForJira {
		fmt.Fprintf(w, "  %s\n", output.Green("Ready for Jira"))
	}
}

func withKey(key, text string) string {
	if key == "" {
		return text
	}
	return "[" + key + "] " + text
}

func reviewEditRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	r, err := svc.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if !workflow.Allows(r.Status, workflow.ActionEdit) {
		return fmt.Errorf("review %s is %s and can no longer be edited", view.ShortID(r.ID), workflow.Label(r.Status))
	}

	original := editableContent(r)
	var edited string
	if reviewFile != "" {
		edited, err = readInput(reviewFile)
	} else {
		edited, err = editInEditor(original)
	}
	if err != nil {
		return err
	}

	if strings.TrimSpace(edited) == strings.TrimSpace(original) {
		ui.Info("No changes to review %s", view.ShortID(r.ID))
		return nil
	}
	if err := content.Validate(edited); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would save %d bytes of edited content to review %s", len(edited), view.ShortID(r.ID))
		return nil
	}

	updated, err := svc.Save(ctx, r, edited)
	if err != nil {
		return err
	}
	ui.Success("Saved edit to review %s", output.Cyan(view.ShortID(updated.ID)))
	if stats := view.StatsText(updated); stats != "" {
		ui.Info("Content: %s", stats)
	} else if _, nerr := content.Normalize(updated.ActiveContent()); nerr != nil {
		ui.Warning("Saved content is not a recognized initiative: %v", nerr)
	}
	return nil
}

// editableContent returns the active content as indented JSON text.
func editableContent(r *models.Review) string {
	return content.FormatJSON(r.ActiveContent().String())
}

func readInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// editInEditor writes text to a temp file, opens it in $EDITOR, and returns the result.
func editInEditor(text string) (string, error) {
	editor, err := lookupEditor("use --file or set it (e.g. export EDITOR=vim)")
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "pmo-edit-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "review.json")
	if err := os.WriteFile(path, []byte(text+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := runEditor(editor, path); err != nil {
		return "", fmt.Errorf("run editor: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited file: %w", err)
	}
	return string(bytes.TrimRight(data, "\n")), nil
}

// lookupEditor returns $EDITOR or $VISUAL. hint completes the error when neither is set.
func lookupEditor(hint string) (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if editor := os.Getenv(env); editor != "" {
			return editor, nil
		}
	}
	return "", fmt.Errorf("$EDITOR is not set; %s", hint)
}

// runEditor opens path in editor attached to the terminal.
func runEditor(editor, path string) error {
	editCmd := exec.Command(editor, path)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

func reviewApproveRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	r, err := svc.Resolve(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		if !workflow.Allows(r.Status, workflow.ActionApprove) {
			return fmt.Errorf("review %s is %s and cannot be approved", view.ShortID(r.ID), workflow.Label(r.Status))
		}
		msg := "Would approve review %s"
		if stats := view.StatsText(r); stats != "" {
			msg += " (" + stats + ")"
		}
		ui.DryRunMsg(msg, view.ShortID(r.ID))
		return nil
	}

	updated, result, err := svc.Approve(ctx, r)
	if err != nil {
		return err
	}

	ui.Success("Approved review %s (status: %s)", output.Cyan(view.ShortID(updated.ID)), output.StatusColor(string(updated.Status)))
	if len(result.JiraTickets) > 0 {
		ui.Info("Jira tickets created: %s", strings.Join(result.JiraTickets, ", "))
	}
	if result.Message != "" {
		ui.VerboseLog("%s", result.Message)
	}
	return nil
}

func reviewRejectRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	r, err := svc.Resolve(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		if !workflow.Allows(r.Status, workflow.ActionReject) {
			return fmt.Errorf("review %s is %s and cannot be rejected", view.ShortID(r.ID), workflow.Label(r.Status))
		}
		ui.DryRunMsg("Would reject review %s", view.ShortID(r.ID))
		return nil
	}

	updated, err := svc.Reject(ctx, r, reviewReason)
	if err != nil {
		return err
	}
	ui.Success("Rejected review %s", output.Cyan(view.ShortID(updated.ID)))
	return nil
}

func reviewHistoryRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	// The log is keyed by full ID; expand a prefix when the service can.
	if r, err := svc.Resolve(ctx, id); err == nil {
		id = r.ID
	}

	actions, err := svc.History(ctx, id)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		ui.Info("No recorded actions for %s", id)
		return nil
	}

	table := ui.Table([]string{"When", "Action", "Outcome", "Detail"})
	for _, a := range actions {
		outcome := output.Green(string(a.Outcome))
		detail := a.Detail
		if a.Outcome == models.ActionOutcomeFailed {
			outcome = output.Red(string(a.Outcome))
			detail = a.Error
		}
		_ = table.Append([]string{
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			string(a.Kind),
			outcome,
			detail,
		})
	}
	_ = table.Render()
	return nil
}
