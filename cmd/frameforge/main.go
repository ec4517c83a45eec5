package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/config"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/engine"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/ledger"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/metrics"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/server"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/session"
)

var (
	version = "0.2.0"
	commit  = "none"
)

var flagConfig string

// App carries the process dependencies so commands can be exercised in
// tests without touching the real home directory or spawning engines.
type App struct {
	Out        io.Writer
	Err        io.Writer
	In         io.Reader
	LoadConfig func(path string) (*config.Config, error)
	NewEngine  func(cfg config.EngineConfig) engine.Engine
}

func DefaultApp() *App {
	return &App{
		Out:        os.Stdout,
		Err:        os.Stderr,
		In:         os.Stdin,
		LoadConfig: config.Load,
		NewEngine: func(cfg config.EngineConfig) engine.Engine {
			return engine.NewSubprocessEngine(cfg)
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	return newRootCmd(app).Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frameforge",
		Short: "Conversational image and wireframe generation over MCP",
		Long: `frameforge is a Model Context Protocol server for iterative image
generation and wireframe design. It speaks line-delimited JSON-RPC on
stdio and keeps every session's iteration history on disk, so clients
can undo, redo and roll back across restarts.

Running frameforge with no subcommand starts the server.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.config/frameforge/config.yaml)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSessionsCmd(app))
	cmd.AddCommand(newDoctorCmd(app))

	return cmd
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app)
		},
	}
}

func runServe(app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return err
	}

	store, err := session.NewStore(cfg.SessionsDir())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	collector := metrics.NewCollector(cfg.Metrics.MaxRecords, cfg.Metrics.Retention)
	manager := session.NewManager(store, collector)

	eng := app.NewEngine(cfg.Engine)
	if err := eng.Initialize(ctx); err != nil {
		// The server still answers session and wireframe tools; generation
		// tools will report the failure per call.
		fmt.Fprintf(app.Err, "warning: generation engine unavailable: %v\n", err)
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to open usage ledger: %w", err)
	}
	defer led.Close()

	srv := server.New(server.Options{
		Manager: manager,
		Engine:  eng,
		Ledger:  led,
		Retry:   engine.PolicyFromConfig(cfg.Retry),
	})
	return srv.Run(ctx, app.In, app.Out)
}

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(app)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(app, args[0])
		},
	})

	return cmd
}

func openStore(app *App) (*session.Store, error) {
	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.SessionsDir())
}

func runSessionsList(app *App) error {
	store, err := openStore(app)
	if err != nil {
		return err
	}
	sessions, err := store.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(app.Out, "No sessions found.")
		return nil
	}

	fmt.Fprintf(app.Out, "%-38s %-14s %-12s %s\n", "SESSION", "UPDATED", "ITERATIONS", "LAST PROMPT")
	for _, sess := range sessions {
		prompt := sess.Metadata.LastPrompt
		if len(prompt) > 50 {
			prompt = prompt[:47] + "..."
		}
		fmt.Fprintf(app.Out, "%-38s %-14s %-12d %s\n",
			sess.ID, relativeTime(sess.UpdatedAt), sess.Metadata.TotalIterations, prompt)
	}
	return nil
}

func runSessionsDelete(app *App, id string) error {
	store, err := openStore(app)
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Session %s deleted.\n", id)
	return nil
}

// relativeTime renders a stored RFC 3339 timestamp as "2 hours ago".
func relativeTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func newDoctorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the generation engine is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(app)
		},
	}
}

func runDoctor(app *App) error {
	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	eng := app.NewEngine(cfg.Engine)
	status, err := eng.CheckStatus(ctx)
	if err != nil {
		return fmt.Errorf("engine check failed: %w", err)
	}

	fmt.Fprintf(app.Out, "Engine command: %s\n", cfg.Engine.Command)
	for _, dep := range status.Dependencies {
		mark := "missing"
		if dep.Installed {
			mark = "ok"
			if dep.Version != "" {
				mark = "ok (" + dep.Version + ")"
			}
		}
		fmt.Fprintf(app.Out, "  %-24s %s\n", dep.Name, mark)
	}
	if !status.Ready {
		if status.Err != "" {
			fmt.Fprintf(app.Out, "Engine is NOT ready: %s\n", status.Err)
		} else {
			fmt.Fprintln(app.Out, "Engine is NOT ready.")
		}
		return fmt.Errorf("engine not ready")
	}
	fmt.Fprintln(app.Out, "Engine is ready.")
	return nil
}
