package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/internal/handlers"
	"github.com/tabwerk/datapipe/internal/service"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/pkg/metrics"
	"github.com/tabwerk/datapipe/pkg/middleware"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg       *config.Config
	store     store.Store
	datasets  *service.DatasetService
	scheduler *service.Scheduler
	figures   *service.FigureService
	listener  net.Listener
}

// New returns a new instance of the datapipe API server.
func New(
	cfg *config.Config,
	store store.Store,
	datasets *service.DatasetService,
	scheduler *service.Scheduler,
	figures *service.FigureService,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		datasets:  datasets,
		scheduler: scheduler,
		figures:   figures,
		listener:  listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	handlers.New(s.datasets, s.scheduler, s.figures, s.store).Routes(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
