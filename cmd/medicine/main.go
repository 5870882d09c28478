package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"MediStore/internal/config"
	"MediStore/internal/medicine"
	"MediStore/pkg/kit"
)

func main() {
	service := "medicine"

	boot, err := kit.NewLogger(service, "info")
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("load config failed", zap.Error(err))
	}

	log, err := kit.NewLogger(service, cfg.LogLevel)
	if err != nil {
		boot.Fatal("build logger failed", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storeMetrics := medicine.NewStoreMetrics(reg)

	s := &medicine.Server{
		Store:   newStore(cfg, log, storeMetrics),
		Log:     log,
		Metrics: storeMetrics,
	}

	h := medicine.NewHandler(s, medicine.HTTPDeps{
		Log:             log,
		Service:         service,
		Registry:        reg,
		MetricsEnabled:  cfg.MetricsEnabled,
		MetricsToken:    cfg.MetricsToken,
		WriteRateLimit:  cfg.WriteRateLimit,
		WriteRateWindow: cfg.WriteRateWindow,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := kit.RunHTTPServer(ctx, cfg.Addr(), h, log, cfg.ShutdownTimeout); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func newStore(cfg config.Config, log *zap.Logger, m *medicine.StoreMetrics) medicine.Store {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory store, records are lost on exit")
		return medicine.NewMemStore()
	}

	log.Info("using file store", zap.String("path", cfg.DataFile))
	return medicine.NewFileStore(cfg.DataFile, log, m)
}
