package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lychee-technology/erpgate"
	"github.com/lychee-technology/erpgate/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flagValues struct {
	configFile string
	port       int
	backendURL string
	baseURL    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	var flags flagValues

	cmd := &cobra.Command{
		Use:   "erpgate",
		Short: "Atom/XML gateway in front of an OpenERP XML-RPC server",
		Long: `erpgate exposes the models of an OpenERP server as Atom collections.
Records are served as Atom entries whose content is an XML document
described by a per-model RelaxNG schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, flags)
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "config file path (YAML)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "port to listen on")
	cmd.Flags().StringVar(&flags.backendURL, "backend-url", "", "XML-RPC root of the ERP server")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "externally visible base URL used in links")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *erpgate.Config, flags flagValues) {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = flags.port
	}
	if cmd.Flags().Changed("backend-url") {
		cfg.Backend.URL = flags.backendURL
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Server.BaseURL = flags.baseURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
}

func run(ctx context.Context, cfg *erpgate.Config) error {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	dispatcher, client, err := NewGateway(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{{
		Addr:    net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler: gatewayHandler(dispatcher),
	}}
	if cfg.Metrics.Enabled {
		collector := NewCollector(cfg.Metrics.Namespace)
		internal.RegisterTelemetryEmitter(collector.Emit)
		defer internal.RegisterTelemetryEmitter(nil)
		servers = append(servers, &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: adminHandler(client, collector.Handler(), cfg.Backend.Timeout),
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			sugar.Infow("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
		}(srv)
	}
	sugar.Infow("gateway started", "backend", cfg.Backend.URL, "port", cfg.Server.Port, "baseURL", cfg.Server.BaseURL)

	var runErr error
	select {
	case <-ctx.Done():
		sugar.Infow("shutting down")
	case runErr = <-errCh:
		sugar.Errorw("server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("graceful shutdown failed", "addr", srv.Addr, "error", err)
		}
	}
	return runErr
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
