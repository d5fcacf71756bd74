package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/application/polling"
	"github.com/ihuguet/nmstate/internal/infrastructure/container"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

const version = "0.3.0"

// Application은 서비스 모드의 메인 애플리케이션 구조체입니다
type Application struct {
	container    *container.Container
	logger       *logrus.Logger
	healthServer *http.Server
}

// NewApplication은 새로운 Application을 생성합니다
func NewApplication(container *container.Container, logger *logrus.Logger) *Application {
	return &Application{
		container: container,
		logger:    logger,
	}
}

// Run은 조정 루프를 실행합니다. SIGINT/SIGTERM까지 블록합니다
func (a *Application) Run() error {
	cfg := a.container.GetConfig()

	if err := a.container.InitServiceMode(); err != nil {
		return err
	}

	metrics.SetServiceInfo(version, cfg.Service.NodeName)
	metrics.SetDBConnectionStatus(true)

	if err := a.startHealthServer(cfg.Health.Port); err != nil {
		return err
	}
	defer a.shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("Received shutdown signal")
		cancel()
	}()

	strategy := polling.NewExponentialBackoffStrategy(
		cfg.Service.PollInterval,
		cfg.Service.MaxPollInterval,
		cfg.Service.BackoffFactor,
		a.logger,
	)
	controller := polling.NewController(strategy, a.logger)

	a.logger.WithFields(logrus.Fields{
		"node":          cfg.Service.NodeName,
		"poll_interval": cfg.Service.PollInterval,
	}).Info("nmstate service started")

	err := controller.Run(ctx, a.reconcileCycle)
	if err == context.Canceled {
		return nil
	}
	return err
}

// reconcileCycle은 한 번의 조정 주기를 실행하고 헬스 상태를 갱신합니다
func (a *Application) reconcileCycle(ctx context.Context) polling.Outcome {
	health := a.container.GetHealthService()

	result, err := a.container.GetReconcileNodeUseCase().Execute(ctx)
	if err != nil {
		health.UpdateDBHealth(false, err)
		metrics.SetDBConnectionStatus(false)
		return polling.Outcome{Err: err}
	}

	health.UpdateDBHealth(true, nil)
	metrics.SetDBConnectionStatus(true)
	for i := 0; i < result.Applied; i++ {
		health.RecordApplied()
	}
	for i := 0; i < result.Failed; i++ {
		health.RecordFailed()
	}

	return polling.Outcome{HasWork: result.HasWork()}
}

// startHealthServer는 헬스체크와 메트릭 서버를 시작합니다
func (a *Application) startHealthServer(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/", a.container.GetHealthService())
	mux.Handle("/metrics", promhttp.Handler())

	a.healthServer = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		a.logger.WithField("port", port).Info("Health check server started (with /metrics)")
		if err := a.healthServer.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.WithError(err).Error("Health check server failed")
		}
	}()

	return nil
}

// shutdown은 헬스 서버를 정리합니다
func (a *Application) shutdown() {
	if a.healthServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := a.healthServer.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Failed to shutdown health check server")
	}
}
