package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/simrailtools/backend-sub003/core/config"
	"github.com/simrailtools/backend-sub003/core/database"
	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/core/loader"
	"github.com/simrailtools/backend-sub003/core/logger"
	"github.com/simrailtools/backend-sub003/core/middleware/auth"
	"github.com/simrailtools/backend-sub003/core/middleware/rayid"
	"github.com/simrailtools/backend-sub003/core/storage"
	"github.com/simrailtools/backend-sub003/feature/archive"
	"github.com/simrailtools/backend-sub003/feature/gateway"
	"github.com/simrailtools/backend-sub003/feature/livecache"
	"github.com/simrailtools/backend-sub003/feature/stream"
	"github.com/simrailtools/backend-sub003/feature/tracker"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// gatewayCmd represents the gateway command
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the gateway server",
	Long: `Starts the gateway. It subscribes to the collector's update stream,
maintains the in-memory snapshot cache and serves it to downstream
clients over REST and a live WebSocket channel.`,
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

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 4. Seed the Snapshot Cache
		cache := livecache.New(store, logg)
		if err := cache.Seed(ctx); err != nil {
			logg.Fatal("Failed to seed snapshot cache", zap.Error(err))
		}
		hub := gateway.NewHub(cache, logg)

		// 5. Snapshot Archive (Optional)
		var exporter *archive.Exporter
		if cfg.Archive.Enabled {
			storageClient, err := storage.NewClient(cfg.Storage)
			if err != nil {
				logg.Fatal("Failed to create storage client", zap.Error(err))
			}
			exporter = archive.NewExporter(storageClient, cache, cfg.Archive, cfg.Storage.Bucket, logg)
			if err := exporter.EnsureBucket(ctx); err != nil {
				logg.Fatal("Failed to prepare archive bucket", zap.Error(err))
			}
			go exporter.Run(ctx)
		}

		// 6. Subscribe to the Collector Stream
		client := stream.NewClient(cfg.Stream, logg, cache.Apply, func(kind frames.Kind) {
			// Frames published while detached are gone; re-ground the cache.
			cache.TriggerResync(ctx)
		})
		client.Start(ctx)

		// 7. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 8. Load Features
		mgr := loader.NewManager(logg)
		var archiveSource gateway.ArchiveSource
		if exporter != nil {
			archiveSource = exporter
		}
		mgr.Register(gateway.NewFeature(cache, hub, archiveSource, logg))
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Start Server
		go func() {
			logg.Info("Starting gateway", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Fatal("Gateway failed to start", zap.Error(err))
			}
		}()

		// 10. Graceful Shutdown
		<-ctx.Done()
		logg.Info("Shutting down gateway...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(gatewayCmd)
}
