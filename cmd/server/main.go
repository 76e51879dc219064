package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/disparos-etl/internal/classify"
	"github.com/AngelCh415/disparos-etl/internal/config"
	"github.com/AngelCh415/disparos-etl/internal/httpx"
	"github.com/AngelCh415/disparos-etl/internal/ingest"
	"github.com/AngelCh415/disparos-etl/internal/metrics"
	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/telemetry"
	"github.com/AngelCh415/disparos-etl/internal/utils"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	cls := classify.Default()
	if cfg.CategoryRulesFile != "" {
		if cls, err = classify.LoadFile(cfg.CategoryRulesFile); err != nil {
			logger.Error("category rules", slog.String("file", cfg.CategoryRulesFile), slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	if cfg.TraceStdout {
		shutdown, err := telemetry.SetupTracing(os.Stderr)
		if err != nil {
			logger.Error("tracing", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := telemetry.New(reg)

	st := store.NewMemoryStore()
	norm := ingest.NewNormalizer(cls, cfg.NormalizerOptions(), logger)
	fetcher := ingest.NewFetcher(ingest.NewHTTPClient(cfg.HTTPTimeout), cfg.LeadsURL, cfg.DispatchesURL,
		utils.NewBackoff(500*time.Millisecond, cfg.FetchRetries), cfg.MaxUploadBytes)
	etl := ingest.NewETL(norm, fetcher, st, tel, logger)
	mSvc := metrics.NewService(st, tel, logger)

	r := httpx.NewRouter(logger, etl, mSvc, st, httpx.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadRPS:      cfg.UploadRPS,
		UploadBurst:    cfg.UploadBurst,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// carga inicial desde los exports remotos, si hay
	if fetcher.Configured() {
		go func() {
			if _, err := etl.Fetch(ctx); err != nil {
				logger.Warn("initial fetch failed", slog.String("err", err.Error()))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port), slog.Bool("remote_exports", fetcher.Configured()),
		slog.Int("category_rules", len(cls.Rules())))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
