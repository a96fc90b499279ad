package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/image-comb/app/api"
	"github.com/lysyi3m/image-comb/app/cfg"
	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
	"github.com/lysyi3m/image-comb/app/storage"
	"github.com/lysyi3m/image-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logger, closeLog := cfg.SetupLogger(appCfg.LogFile, appCfg.LogLevel())
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(appCfg); err != nil {
		slog.Error("Image Comb failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Image Comb", "version", appCfg.Version, "mode", appCfg.Mode, "backend", appCfg.Backend, "timezone", appCfg.Location.String())

	configCache := feed.NewConfigCache(appCfg.SourcesDir, appCfg.FeedLimit)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetSourceCount(), "enabled", len(configCache.GetEnabledSources()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Backend:    appCfg.Backend,
		DataDir:    appCfg.DataDir,
		SQLitePath: appCfg.SQLitePath,
		BadgerDir:  appCfg.BadgerDir,
		S3Bucket:   appCfg.S3Bucket,
		S3Prefix:   appCfg.S3Prefix,
		S3Region:   appCfg.S3Region,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: 60 * time.Second}

	readers := feed.Readers{
		feed.ReaderReddit: feed.NewRedditReader(feed.RedditCredentials{
			ClientID:     appCfg.RedditClientID,
			ClientSecret: appCfg.RedditClientSecret,
		}, appCfg.UserAgent, feed.WithRedditHTTPClient(httpClient)),
		feed.ReaderRSS: feed.NewRSSReader(httpClient, appCfg.UserAgent, 30*time.Second),
	}

	metadata := harvest.NewMetadata(store)
	fetcher := harvest.NewContentFetcher(httpClient, store, appCfg.FetchTimeout, appCfg.UserAgent, appCfg.Location)
	collector := harvest.NewCollector(readers, feed.NewFilterer(nil), metadata, fetcher)
	summaries := harvest.NewSummaryWriter(store)

	if appCfg.Mode == cfg.ModeOnce {
		runner := harvest.NewRunner(configCache.GetEnabledSources(), collector, metadata, summaries, appCfg.Location)
		_, err := runner.Run(ctx)
		return err
	}

	return serve(ctx, appCfg, configCache, collector, metadata, summaries)
}

func serve(ctx context.Context, appCfg *cfg.Cfg, configCache *feed.ConfigCache, collector *harvest.Collector, metadata *harvest.Metadata, summaries *harvest.SummaryWriter) error {
	orchestrator := tasks.NewOrchestrator(configCache, collector, metadata, summaries, tasks.OrchestratorOptions{
		Schedule:    appCfg.Schedule,
		WorkerCount: appCfg.WorkerCount,
		RetryDelay:  appCfg.RetryDelay,
		Location:    appCfg.Location,
	})
	if err := orchestrator.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer orchestrator.Stop()

	generator := api.NewGenerator(appCfg.BaseUrl, appCfg.Version, api.DefaultGalleryLimit, appCfg.Location)
	handler := api.NewHandler(metadata, generator, orchestrator, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
