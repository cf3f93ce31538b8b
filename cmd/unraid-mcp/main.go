package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcourtman/unraid-mcp/internal/config"
	"github.com/rcourtman/unraid-mcp/internal/health"
	"github.com/rcourtman/unraid-mcp/internal/logging"
	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/tools"
	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	serverName    = "Unraid MCP Server"
	mcpServerName = "unraid-mcp"
)

// errUnhealthy makes the health command exit non-zero without printing an error.
var errUnhealthy = errors.New("server is not healthy")

var rootCmd = &cobra.Command{
	Use:           "unraid-mcp",
	Short:         "MCP server for the Unraid GraphQL API",
	Long:          `unraid-mcp exposes Unraid server telemetry, array health and rclone management as MCP tools.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on the configured transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run one health check and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context(), cmd.OutOrStdout())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools this server provides",
	Run: func(cmd *cobra.Command, args []string) {
		printTools(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "unraid-mcp %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), configView(cfg))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}

func execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func loadRuntime() (*config.Config, error) {
	// Baseline logging for startup errors, replaced once config is known.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: mcpServerName,
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: mcpServerName,
		FilePath:  cfg.LogFile,
	})
	return cfg, nil
}

func newExecutor(cfg *config.Config) (*tools.Executor, *unraid.Client, error) {
	client, err := unraid.NewClient(unraid.ClientConfig{
		URL:         cfg.APIURL,
		APIKey:      cfg.APIKey,
		VerifySSL:   cfg.VerifySSL,
		Fingerprint: cfg.TLSFingerprint,
		Timeout:     cfg.APITimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create Unraid API client: %w", err)
	}

	executor := tools.NewExecutor(tools.ExecutorConfig{
		Client: client,
		Server: tools.ServerSettings{
			Name:      serverName,
			Version:   Version,
			Transport: string(cfg.Transport),
			Host:      cfg.Host,
			Port:      cfg.Port,
		},
	})
	return executor, client, nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	executor, client, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	server := mcp.NewServer(mcpServerName, Version, executor)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("version", Version).
		Str("transport", string(cfg.Transport)).
		Str("api_url", cfg.APIURL).
		Bool("verify_ssl", cfg.VerifySSL).
		Msg("Starting Unraid MCP server")

	g, gctx := errgroup.WithContext(runCtx)

	if cfg.MetricsEnabled() {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr)
		})
	}

	g.Go(func() error {
		// The stdio transport ends on EOF; take the metrics server down with it.
		defer cancel()
		return serveTransport(gctx, cfg, server)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Unraid MCP server stopped")
	return nil
}

func serveTransport(ctx context.Context, cfg *config.Config, server *mcp.Server) error {
	switch cfg.Transport {
	case config.TransportStdio:
		return server.ServeStdio(ctx, os.Stdin, os.Stdout)
	case config.TransportSSE:
		log.Warn().Msg("The sse transport is deprecated; serving streamable-http on the same address")
		return server.ListenAndServe(ctx, cfg.ListenAddr())
	default:
		return server.ListenAndServe(ctx, cfg.ListenAddr())
	}
}

func runHealth(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	executor, client, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	report := executor.HealthCheck(ctx)
	if err := writeJSON(out, report); err != nil {
		return err
	}
	if report.Status > health.StatusWarning {
		return errUnhealthy
	}
	return nil
}

func printTools(out io.Writer) {
	executor := tools.NewExecutor(tools.ExecutorConfig{})
	for _, tool := range executor.ListTools() {
		summary, _, _ := strings.Cut(tool.Description, "\n")
		fmt.Fprintf(out, "%-26s %s\n", tool.Name, summary)
	}
}

type configOutput struct {
	config.Config
	APITimeout string `json:"api_timeout"`
}

func configView(cfg *config.Config) configOutput {
	redacted := cfg.Redacted()
	return configOutput{
		Config:     redacted,
		APITimeout: redacted.APITimeout.String(),
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
