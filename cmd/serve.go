package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pmo/internal/api"
	"github.com/joescharf/pmo/internal/daemon"
	"github.com/joescharf/pmo/internal/output"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local review API server",
	Long: `Start an HTTP server exposing the review API under /api/v1.
By default it listens on port 8080. Use --port to change it.

Use 'pmo serve status' and 'pmo serve stop' to manage a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the local API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun(cmd.Context())
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running local API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

// instanceFile returns the state file of the local API server.
func instanceFile() *daemon.InstanceFile {
	return daemon.NewInstanceFile(filepath.Join(viper.GetString("state_dir"), "pmo-serve.json"))
}

func serveRun(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", viper.GetInt("port"))

	if dryRun {
		ui.DryRunMsg("Would serve the review API at http://localhost%s/api/v1", addr)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	inst := instanceFile()
	if _, err := inst.Claim(addr); err != nil {
		_ = ln.Close()
		return err
	}
	defer func() { _ = inst.Release() }()

	srv := &http.Server{
		Handler:           api.NewServer(svc, previewLength()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	ui.Success("Serving review API at http://localhost%s/api/v1", addr)
	ui.Info("Forwarding to %s", viper.GetString("api.base_url"))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down review API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStatusRun(ctx context.Context) error {
	inst, running := instanceFile().Running()
	if !running {
		ui.Info("Server is not running")
		return nil
	}

	ui.Success("Server running (PID %d) at %s", inst.PID, inst.URL())
	fmt.Fprintf(ui.Out, "  Started:    %s\n", inst.StartedAt.Local().Format(time.RFC3339))

	if err := probeLocal(ctx, inst.URL()+"/api/v1/health"); err != nil {
		fmt.Fprintf(ui.Out, "  Service:    %s\n", output.Red(err.Error()))
		return nil
	}
	fmt.Fprintf(ui.Out, "  Service:    %s\n", output.Green("reachable"))
	return nil
}

// probeLocal asks the running server for the collaborator's health, which it proxies.
func probeLocal(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	return nil
}

func serveStopRun() error {
	if dryRun {
		if inst, running := instanceFile().Running(); running {
			ui.DryRunMsg("Would stop server PID %d", inst.PID)
			return nil
		}
		return daemon.ErrNotRunning
	}

	inst, err := instanceFile().Stop()
	if err != nil {
		return err
	}
	ui.Success("Stopped server (PID %d)", inst.PID)
	return nil
}
