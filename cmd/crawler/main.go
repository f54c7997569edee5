package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-bikes/config"
	"github.com/aluiziolira/go-scrape-bikes/crawler"
	"github.com/aluiziolira/go-scrape-bikes/fetcher"
	"github.com/aluiziolira/go-scrape-bikes/models"
	"github.com/aluiziolira/go-scrape-bikes/pipeline"
	"github.com/aluiziolira/go-scrape-bikes/validator"
)

func main() {
	outputDefault := "output"
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := ""
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	manifestPath := flag.String("manifest", "specs/manifest.json", "Path to the crawl manifest")
	schemaPath := flag.String("schema", "", "Path to the output schema (optional; no schema accepts everything)")
	outputDir := flag.String("output", outputDefault, "Output directory for bikes.json and bikes.csv")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := config.Load(*manifestPath)
	if err != nil {
		slog.Error("loading manifest", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid manifest", slog.Any("error", err))
		os.Exit(1)
	}

	var v *validator.Validator
	if *schemaPath != "" {
		v, err = validator.NewFromFile(*schemaPath)
		if err != nil {
			slog.Error("loading schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	f, err := fetcher.New(cfg.Fetch)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	c, err := crawler.New(cfg, f, v)
	if err != nil {
		slog.Error("initialising crawler", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.String("backend", cfg.Fetch.Backend),
		slog.Int("start_page", cfg.StartPage),
		slog.Int("end_page", cfg.EndPage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    *metricsAddr,
			Handler: promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", *metricsAddr))
	}

	result, err := c.Run(ctx)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := pipeline.SaveAll(*outputDir, result.Bikes); err != nil {
		slog.Error("writing output", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	slog.Info("saved output",
		slog.Int("bikes", len(result.Bikes)),
		slog.String("dir", *outputDir),
	)
	printSummary(result, *outputDir)
}

func printSummary(result *models.CrawlResult, outputDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Pages fetched: %d\n", result.PageCount)
	fmt.Printf("  Extracted:     %d\n", result.Extracted)
	fmt.Printf("  Accepted:      %d\n", result.Accepted)
	fmt.Printf("  Rejected:      %d\n", result.Rejected)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output dir:    %s\n", outputDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
