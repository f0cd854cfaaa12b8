// -----------------------------------------------------------------------
// Last Modified: Tuesday, 25th August 2026 11:02:36 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/app"
	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/server"
	"github.com/ternarybob/ordermirror/internal/services/browser"
	"github.com/ternarybob/ordermirror/internal/services/crawl"
	"github.com/ternarybob/ordermirror/internal/services/extractor"
	"github.com/ternarybob/ordermirror/internal/services/images"
	"github.com/ternarybob/ordermirror/internal/services/ingest"
	"github.com/ternarybob/ordermirror/internal/services/navigator"
	"github.com/ternarybob/ordermirror/internal/services/session"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles   configPaths
	serverPort    = flag.Int("port", 0, "Server port (overrides config)")
	serverHost    = flag.String("host", "", "Server host (overrides config)")
	runCrawl      = flag.Bool("crawl", false, "Run one crawl and exit")
	refreshImages = flag.Bool("refresh-images", false, "Run one image freshness sweep and exit")
	showVersion   = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("OrderMirror version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup order: config, CLI overrides, logger, banner.
	if len(configFiles) == 0 {
		if _, err := os.Stat("ordermirror.toml"); err == nil {
			configFiles = append(configFiles, "ordermirror.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("organization", config.Organization).
		Str("storage", config.Storage.Type).
		Msg("Configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	switch {
	case *runCrawl:
		if err := crawlOnce(config, application, logger); err != nil {
			logger.Fatal().Err(err).Msg("Crawl run failed")
			os.Exit(1)
		}
	case *refreshImages:
		if application.Images == nil {
			logger.Fatal().Msg("Image refresh not configured")
			os.Exit(1)
		}
		if _, err := application.Images.Sweep(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("Image freshness sweep failed")
			os.Exit(1)
		}
	default:
		serve(config, application, logger)
	}
}

// crawlOnce runs a single crawl of the remote system
func crawlOnce(config *common.Config, application *app.App, logger arbor.ILogger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	selectors := extractor.DefaultSelectors()

	page := browser.New(config.Crawler, logger)
	if err := page.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer page.Shutdown()

	sessionSvc := session.NewService(config.Session, selectors, config.LoginURL(), config.ListURL(), logger)
	nav := navigator.New(page, selectors, config.Crawler, config.ListURL(), logger)
	listExtractor := extractor.NewListExtractor(selectors, logger)
	detailExtractor := extractor.NewDetailExtractor(selectors, logger)
	engine := ingest.NewUpsertEngine(application.DB, logger)
	batch := ingest.NewBatchCoordinator(engine, config.Crawler.ErrorArtifactDir, logger)

	runner := crawl.NewRunner(config, selectors, page, sessionSvc, nav, listExtractor, detailExtractor, batch, logger)

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Int("persisted", report.Persisted).
		Int("failed", report.Failed).
		Msg("Crawl finished")
	return nil
}

// serve runs the read API plus the scheduled image freshness sweep
func serve(config *common.Config, application *app.App, logger arbor.ILogger) {
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	var sweeper *images.Sweeper
	if application.Images != nil && config.Images.SweepSchedule != "" {
		sweeper = images.NewSweeper(application.Images, config.Images.SweepSchedule, logger)
		if err := sweeper.Start(sweepCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to start image freshness sweep")
		}
	}

	srv := server.New(application)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}
