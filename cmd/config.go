package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pmo"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage pmo configuration.

Running bare 'pmo config' is the same as 'pmo config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# pmo configuration
# See: pmo config show (for effective values and sources)

# State/data directory (default: ~/.config/pmo)
# state_dir: {{ .StateDir }}

# SQLite cache database path (default: ~/.config/pmo/pmo.db)
# db_path: {{ .DBPath }}

# PM Orchestration service
api:
  # Base URL of the service
  base_url: "{{ .APIBaseURL }}"

  # API key, sent as a bearer token and in X-API-Key.
  # Prefer the PMO_API_KEY environment variable over storing it here.
  key: "{{ .APIKey }}"

  # Per-request timeout (default: 30s)
  timeout: {{ .APITimeout }}

# List previews
preview:
  # Maximum preview length in characters (default: 150)
  max_length: {{ .PreviewMaxLength }}

# Port for 'pmo serve' (default: 8080)
port: {{ .Port }}
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	APIBaseURL       string
	APIKey           string
	APITimeout       string
	PreviewMaxLength int
	Port             int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		APIBaseURL:       viper.GetString("api.base_url"),
		APIKey:           viper.GetString("api.key"),
		APITimeout:       viper.GetDuration("api.timeout").String(),
		PreviewMaxLength: viper.GetInt("preview.max_length"),
		Port:             viper.GetInt("port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys are shown by 'config show' in this order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"api.base_url",
	"api.key",
	"api.timeout",
	"preview.max_length",
	"port",
}

// envVarFor returns the environment variable that overrides key.
func envVarFor(key string) string {
	return "PMO_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	file := readConfigFile(cfgPath)
	if file != nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range configKeys {
		val := viper.GetString(key)
		if key == "api.key" {
			val = maskSecret(val)
		}
		_ = table.Append([]string{key, val, keySource(key, file)})
	}
	return table.Render()
}

// maskSecret hides all but the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFile loads the config file on its own, without defaults or env,
// so keys it sets can be told apart. It returns nil when there is no readable file.
func readConfigFile(path string) *viper.Viper {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil
	}
	return v
}

// keySource reports whether key comes from the environment, the file, or a default.
func keySource(key string, file *viper.Viper) string {
	if env := envVarFor(key); os.Getenv(env) != "" {
		return "env: " + env
	}
	if file != nil && file.IsSet(key) {
		return "file"
	}
	return "default"
}

func configEditRun() error {
	editor, err := lookupEditor("set it to your preferred editor (e.g. export EDITOR=vim)")
	if err != nil {
		return err
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'pmo config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}
	return runEditor(editor, cfgPath)
}
