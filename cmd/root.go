package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pmo/internal/gateway"
	"github.com/joescharf/pmo/internal/output"
	"github.com/joescharf/pmo/internal/review"
	"github.com/joescharf/pmo/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	reviewSvc *review.Service

	verbose bool
	dryRun  bool
)

// envKeyReplacer maps nested keys such as api.base_url to PMO_API_BASE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

var rootCmd = &cobra.Command{
	Use:   "pmo",
	Short: "PM Orchestration review console - review, edit, and approve generated tickets",
	Long: `pmo is the review console for the PM Orchestration engine.
It lists generated initiatives awaiting review, shows their epics and
stories, lets you edit the content, and approves or rejects it so the
engine can create the Jira tickets.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/pmo/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "pmo")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PMO")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "pmo"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "pmo.db"))
	viper.SetDefault("api.base_url", "https://pm-orchestration-engine.vercel.app")
	viper.SetDefault("api.key", "")
	viper.SetDefault("api.timeout", gateway.DefaultTimeout)
	viper.SetDefault("preview.max_length", 150)
	viper.SetDefault("port", 8080)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and gateway are created lazily so config/version run offline.
}

// rootRun handles `pmo` with no subcommand: list pending reviews.
func rootRun(cmd *cobra.Command) error {
	if _, err := getService(); err != nil {
		return cmd.Help()
	}
	reviewStatus = "pending"
	return reviewListRun(cmd.Context())
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getGateway builds a collaborator client from the current configuration.
func getGateway() (*gateway.Client, error) {
	cfg := gateway.Config{
		BaseURL: viper.GetString("api.base_url"),
		APIKey:  viper.GetString("api.key"),
		Timeout: viper.GetDuration("api.timeout"),
		Logf:    ui.VerboseLog,
	}
	if cfg.APIKey == "" {
		ui.VerboseLog("api.key is not set; requests will be sent without a credential")
	}
	return gateway.New(cfg)
}

// getService returns the shared review service, initializing it on first call.
// The local cache is optional: when it cannot be opened the service runs without it.
func getService() (*review.Service, error) {
	if reviewSvc != nil {
		return reviewSvc, nil
	}

	gw, err := getGateway()
	if err != nil {
		return nil, err
	}

	s, err := getStore()
	if err != nil {
		ui.Warning("Local cache unavailable: %v", err)
		s = nil
	}

	reviewSvc = review.NewService(gw, s)
	reviewSvc.Logf = ui.VerboseLog
	return reviewSvc, nil
}
