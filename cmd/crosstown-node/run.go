package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ALLiDoizCode/crosstown/config"
	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/health"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/internal/metrics"
	"github.com/ALLiDoizCode/crosstown/lifecycle"

	"github.com/ALLiDoizCode/crosstown"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load config, bootstrap, and run the relay monitor until interrupted",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configPath, "config", "c", "crosstown.yaml", "path to the YAML config file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewDefaultLogger()
	stub := newStubConnector(log)
	cfg.Connector = stub
	cfg.HandlePacket = func(ctx context.Context, p connector.InboundPacket) (connector.InboundResult, error) {
		log.Info("stub: inbound packet rejected", logger.String("destination", p.Destination))
		return connector.InboundResult{Accept: false, Code: "F00", Message: "stub connector: no handler configured"}, nil
	}

	node, err := crosstown.CreateNode(cfg)
	if err != nil {
		return err
	}
	node.Listen(func(ev lifecycle.Event) {
		log.Info("lifecycle event", logger.String("kind", string(ev.Kind)))
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		go serve(ctx, log, "metrics", cfg.Metrics.Addr, metricsMux)
	}
	if cfg.Health.Enabled {
		healthMux := http.NewServeMux()
		healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeHealth(w, r.Context(), node)
		})
		go serve(ctx, log, "health", cfg.Health.Addr, healthMux)
	}

	result, err := node.Start(ctx)
	if err != nil {
		return err
	}
	log.Info("bootstrap complete", logger.Int("peerCount", result.PeerCount), logger.Int("channelCount", result.ChannelCount))

	<-ctx.Done()
	log.Info("shutting down")
	return node.Stop()
}

// serve runs an HTTP server until ctx is cancelled, logging a non-shutdown
// error rather than failing the whole process — a dead metrics or health
// endpoint shouldn't take the node down with it.
func serve(ctx context.Context, log logger.Logger, name, addr string, handler http.Handler) {
	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	log.Info("serving "+name, logger.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(name+" server stopped", logger.Error(err))
	}
}

func writeHealth(w http.ResponseWriter, ctx context.Context, node *crosstown.Node) {
	status := node.Health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if status.Status != health.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
