package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/mcptool"
	"github.com/workgraph/workctl/internal/obslog"
	"github.com/workgraph/workctl/internal/store"
	"github.com/workgraph/workctl/internal/store/dolt"
	"github.com/workgraph/workctl/internal/store/sqlite"
	"github.com/workgraph/workctl/internal/telemetry"
)

var (
	serveAddr       string
	serveSchemaPath string
	serveOtelMode   string
	serveOtelEndpt  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP tool server over stdio, or over TCP with --addr",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Serve streamable HTTP on this address instead of stdio (e.g. :8717)")
	serveCmd.Flags().StringVar(&serveSchemaPath, "note-schema", "", "Path to a YAML note-schema file; omit to run without gate-check requirements")
	serveCmd.Flags().StringVar(&serveOtelMode, "otel-mode", "stdout", "Telemetry exporter mode: stdout or otlp")
	serveCmd.Flags().StringVar(&serveOtelEndpt, "otel-endpoint", "", "OTLP collector endpoint (only used when --otel-mode=otlp)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Mode:        serveOtelMode,
		Endpoint:    serveOtelEndpt,
		ServiceName: "workctl",
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if verbose || viper.GetBool("verbose") {
		obslog.SetEnabled(true)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var schemaService gatecheck.NoteSchemaService
	if serveSchemaPath != "" {
		fsvc, err := gatecheck.NewFileSchemaService(serveSchemaPath)
		if err != nil {
			return fmt.Errorf("load note schema: %w", err)
		}
		defer func() { _ = fsvc.Close() }()
		schemaService = fsvc
	}

	svc := mcptool.NewServices(st, schemaService)
	srv := mcptool.New(svc, "workctl", version)

	if serveAddr != "" {
		obslog.Debugf("workctl: serving MCP tools over HTTP at %s", serveAddr)
		return srv.ServeTCP(ctx, serveAddr)
	}
	return srv.ServeStdio(ctx)
}

// openStore opens the configured backend, applying its core schema.
func openStore(ctx context.Context) (store.Store, error) {
	switch dbDriver {
	case "sqlite":
		return sqlite.Open(ctx, dbPath)
	case "dolt":
		cfg, err := parseDoltDSN(doltDSN)
		if err != nil {
			return nil, err
		}
		return dolt.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown --driver %q: must be sqlite or dolt", dbDriver)
	}
}
