// main.go
package main

import (
	"context"
	"log"

	"trip-booking/cmd"
	"trip-booking/internal/data/repository"
	"trip-booking/internal/queue"
	"trip-booking/internal/wire"
	"trip-booking/pkg/database"
	"trip-booking/pkg/utils"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Redis is only needed for the shared seat lock backend
	var rdb *goredis.Client
	if config.Lock.Backend == "redis" {
		rdb, err = database.InitRedis(config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		logger.Info("Redis connected successfully")
	}

	// Event publishing is optional; without a queue URL events are dropped
	var pub *queue.Publisher
	if config.Queue.URL != "" {
		pub, err = queue.NewPublisher(config.Queue.URL, config.Queue.Exchange, logger)
		if err != nil {
			logger.Fatal("Failed to connect to message queue", zap.Error(err))
		}
		defer pub.Close()

		logger.Info("Message queue connected successfully")
	}

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, rdb, pub, config, logger)

	// Background loops stop when the server shuts down
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.Service.Scheduler.Start(ctx)
	app.Service.Reconciler.Start(ctx)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port)
}
