package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/solatis/quill/internal/core/api"
	"github.com/solatis/quill/internal/core/auth"
	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/core/server"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/watch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rewrite service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9464", "metrics HTTP address (empty disables)")
	serveCmd.Flags().String("data-dir", "./data", "data directory for the default sqlite store")
	serveCmd.Flags().String("rules", "", "rules file (overrides the stored rule set)")
	serveCmd.Flags().String("rule-set", "default", "stored rule set to serve when no rules file is given")
	serveCmd.Flags().String("strategies", "", "YAML file declaring named selection strategies")
	serveCmd.Flags().String("default-strategy", "default", "strategy used when a request names none")
	serveCmd.Flags().Bool("watch", true, "reload the rules file when it changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()

	opts, err := cfg.Rewriter.RuleOptions()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	load, closeSource, err := ruleSource(cfg, opts)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := rules.NewEngine(nil)
	reloader := watch.NewReloader(engine, load, m, log)
	if _, err := reloader.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	service, err := api.NewRewriteService(cfg.Server, rewrite.New(engine, log), registry, reloader, m, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	authenticator, err := newAuthenticator()
	if err != nil {
		return err
	}
	if authenticator == nil {
		log.Warn("no HMAC secrets configured, requests are not authenticated (set QUILL_HMAC_SECRET)")
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server.Addr(), service, authenticator, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting quill", "version", Version, "addr", cfg.Server.Addr(),
		"rules_file", cfg.Rewriter.RulesFile, "rule_set", cfg.Rewriter.RuleSet,
		"strategies", registry.Names(), "default_strategy", cfg.Rewriter.DefaultStrategy)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(grpcServer.Start)

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.Server.MetricsAddr, promReg, log)
		g.Go(metricsServer.Start)
	}

	if cfg.Rewriter.Watch && cfg.Rewriter.RulesFile != "" {
		watcher, err := watch.NewWatcher(cfg.Rewriter.RulesFile, reloader, cfg.Rewriter.ReloadDebounce, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var errs []error
		errs = append(errs, grpcServer.Shutdown(shutdownCtx))
		if metricsServer != nil {
			errs = append(errs, metricsServer.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newAuthenticator returns nil when no secrets are configured.
func newAuthenticator() (*auth.Authenticator, error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil
	}
	return auth.NewAuthenticator(secrets, "/grpc.health.v1.Health/"), nil
}
