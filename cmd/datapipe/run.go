package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/tabwerk/datapipe/internal/api_server"
	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the datapipe api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogger(cfg)
		defer cleanup()

		zap.S().Info("Starting datapipe service")
		defer zap.S().Info("Datapipe service stopped")

		s, err := openStore(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		defer s.Close()

		svc := buildServices(cfg, s)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		// fail jobs left running by a previous process before serving
		if reconciled, err := svc.scheduler.ReconcileStaleJobs(ctx); err != nil {
			zap.S().Fatalw("reconciling stale jobs", "error", err)
		} else if reconciled > 0 {
			zap.S().Infof("marked %d stale jobs as failed", reconciled)
		}
		go svc.scheduler.StartReconciler(ctx, cfg.Service.ReconcileEvery)

		prometheus.MustRegister(metrics.NewPipelineStatsCollector(s))

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, s, svc.datasets, svc.scheduler, svc.figures, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("running server", "error", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
