package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/internal/config"
	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/OkutaniDaichi0106/gowtecho/wtecho/webtransportgo"
	"github.com/OkutaniDaichi0106/gowtecho/wtecho/wtmetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quic-go/quic-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	configFile string
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	var cmd = &cobra.Command{
		Use:          "serve <certificate> <key>",
		SilenceUsage: true,
		Short:        "serve the echo handler",
		Long:         `serve listens for WebTransport sessions using the given PEM certificate and private key until interrupted`,
		Args:         cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, args[0], args[1])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.configFile, "config", "c", "", "configuration file (yaml, json or toml)")
	fs.StringP("addr", "a", "[::1]:4433", "UDP address to listen on")
	fs.Bool("secured", false, "seal every stream payload with AES-256-GCM")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "address of the Prometheus endpoint; empty disables it")
	fs.String("key-file", "", "file holding the hex encoded overlay key")
	fs.String("key-mode", config.KeyModeStatic, "overlay key mode (static, hkdf)")
	fs.Duration("write-timeout", 5*time.Second, "bound on every stream write")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, certFile, keyFile string) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()

	server, err := newServer(cfg, logger, reg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "secured", cfg.Secured)
		err := server.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, webtransportgo.ErrServerClosed) {
			return nil
		}
		return err
	})

	if cfg.Metrics.Addr != "" {
		metricsSrv := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: metricsMux(reg),
		}

		g.Go(func() error {
			logger.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// newServer wires the configuration, metrics and overlay keys into a server.
func newServer(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*webtransportgo.Server, error) {
	metrics := wtmetrics.New(reg)

	echoConfig := &wtecho.Config{
		Secured: cfg.Secured,
		Tracer:  metrics.Tracer,
	}

	if cfg.Secured {
		keys, err := cfg.KeyProvider()
		if err != nil {
			return nil, err
		}
		echoConfig.Keys = keys
	}

	return &webtransportgo.Server{
		Addr: cfg.Addr,
		QUICConfig: &quic.Config{
			MaxIdleTimeout:  cfg.IdleTimeout,
			EnableDatagrams: true,
		},
		Config:       echoConfig,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	}, nil
}

func metricsMux(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", wtmetrics.Handler(g))
	return mux
}
