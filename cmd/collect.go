package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/simrailtools/backend-sub003/core/config"
	"github.com/simrailtools/backend-sub003/core/database"
	"github.com/simrailtools/backend-sub003/core/logger"
	"github.com/simrailtools/backend-sub003/feature/stream"
	"github.com/simrailtools/backend-sub003/feature/tracker"

	eventbus "github.com/jilio/ebu"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Start the collector",
	Long: `Starts the upstream polling collector. It detects changes against the
persisted state, saves them and serves the resulting update frames to
gateway instances over the internal stream.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		store := tracker.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			logg.Fatal("Failed to migrate schema", zap.Error(err))
		}
		if err := store.VerifySchema(); err != nil {
			logg.Fatal("Schema verification failed", zap.Error(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 4. Initialize Collector and Stream Server
		bus := eventbus.New()
		collector := tracker.NewCollector(tracker.NewHTTPPoller(cfg.Tracker), store, bus, logg, cfg.Tracker)
		streamSrv := stream.NewServer(bus, logg, cfg.Stream)

		if err := collector.Seed(ctx); err != nil {
			logg.Fatal("Failed to seed collector state", zap.Error(err))
		}

		go func() {
			if err := streamSrv.Start(ctx); err != nil {
				logg.Fatal("Stream server failed", zap.Error(err))
			}
		}()

		// 5. Poll until shutdown
		interval := time.Duration(cfg.Tracker.PollIntervalSeconds) * time.Second
		logg.Info("Collector started",
			zap.String("upstream", cfg.Tracker.UpstreamURL),
			zap.Duration("interval", interval))
		collector.Run(ctx, interval)

		logg.Info("Shutting down collector...")
	},
}

func init() {
	RootCmd.AddCommand(collectCmd)
}
