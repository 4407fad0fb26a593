package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port int
	Host string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inputs and grid over HTTP",
		Long: `Start a local HTTP API for the saved inputs and the grid.

Endpoints:
  GET  /healthz
  GET  /api/inputs          current inputs
  PUT  /api/inputs          validate and save inputs
  GET  /api/grid            grid for the current inputs (?format=json|csv|xlsx)
  GET  /api/grid/count      value and point counts
  GET  /api/exports         export history (?limit=N)
  GET  /api/events          server-sent events when the inputs change

The grid endpoints accept any input key as a query parameter to override
the saved value for that request only.`,
		Example: `  # Serve on the default address (127.0.0.1:8765)
  lensgrid serve

  # Serve on another port
  lensgrid serve --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to listen on (default: 8765)")
	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to listen on (default: 127.0.0.1)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	serveCfg := cmdCtx.Cfg.GetServeConfig()
	host := serveCfg.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := serveCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("--port out of range: %d", port)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	srv := server.NewServer(server.Config{
		Store:     cmdCtx.Store,
		Generator: cmdCtx.Generator(),
		Defaults:  cmdCtx.Cfg.DefaultInputs(),
		Export:    export.Options{Sheet: cmdCtx.Cfg.GetExportConfig().Sheet},
		Addr:      addr,
		Logger:    cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cmdCtx.Renderer
	r.Printf("Serving lensgrid API on http://%s\n", addr)
	r.Println(r.Styles().Muted.Render("Press Ctrl+C to stop"))

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	cmdCtx.Logger.Info("server stopped")
	return nil
}
