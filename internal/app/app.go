package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/legacy-orders/internal/health"
	"github.com/vladislavdragonenkov/legacy-orders/internal/metrics"
	httpsvc "github.com/vladislavdragonenkov/legacy-orders/internal/service/http"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/query"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/transition"
	"github.com/vladislavdragonenkov/legacy-orders/internal/version"
)

const (
	// grpcHealthService — имя сервиса в grpc.health.v1 помимо общего "".
	grpcHealthService = "legacy_orders"

	healthWatchInterval = 10 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Run поднимает HTTP API, сервер метрик и gRPC health и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithFields(version.Fields()).Info("starting legacy-orders")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	transitionMetrics := metrics.NewTransitionMetrics()

	engineOpts := []transition.Option{
		transition.WithLogger(logger.WithField("layer", "transition")),
		transition.WithMetrics(transitionMetrics),
	}
	if publisher := statusPublisher(kafkaProducer, cfg.KafkaTopic); publisher != nil {
		engineOpts = append(engineOpts, transition.WithPublisher(publisher))
	}
	engine := transition.NewEngine(deps.repo, engineOpts...)
	transitioner := transition.NewRetrying(engine, cfg.TransitionRetry, logger.WithField("layer", "retry"), transitionMetrics)
	lister := query.NewService(deps.repo, logger.WithField("layer", "query"), transitionMetrics)

	handler := httpsvc.NewHandler(transitioner, engine, lister, logger.WithField("layer", "http"))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	grpcServer, healthServer := newGRPCServer(logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)
	apiSrv := startAPIServer(cfg.HTTPAddr, httpsvc.NewRouter(handler), logger, errCh)

	go watchStorageHealth(ctx, healthServer, healthHandler, healthWatchInterval)

	go func() {
		logger.Infof("gRPC health сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, healthServer, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, healthServer, logger)
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newGRPCServer собирает gRPC-сервер с health, reflection и prometheus-интерцепторами.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcHealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// watchStorageHealth переводит gRPC health в NOT_SERVING, пока хранилище недоступно.
func watchStorageHealth(ctx context.Context, healthServer *health.Server, checks *healthcheck.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			applyServingStatus(healthServer, checks)
		}
	}
}

func applyServingStatus(healthServer *health.Server, checks *healthcheck.Handler) {
	status := healthpb.HealthCheckResponse_SERVING
	if overall, _ := checks.Evaluate(); overall == healthcheck.StatusUnhealthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	healthServer.SetServingStatus("", status)
	healthServer.SetServingStatus(grpcHealthService, status)
}

func stopGRPC(grpcServer *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	healthServer.Shutdown()

	stoppedCh := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}
}

// startAPIServer запускает HTTP API; ошибка запуска уходит в errCh.
func startAPIServer(addr string, handler http.Handler, logger *log.Entry, errCh chan<- error) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("HTTP API слушает %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()
	return srv
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}
