package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	instagramclient "crosspost/infrastructure/clients/instagram"
	tiktokclient "crosspost/infrastructure/clients/tiktok"
	youtubeclient "crosspost/infrastructure/clients/youtube"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	httpHandler "crosspost/interfaces/http"
	"crosspost/server"
	"crosspost/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	db, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
		configuration.C.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("MongoDB initialization failed")
		os.Exit(1)
	}
	if err := mongoDb.Ping(ctx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("MongoDB ping failed")
		os.Exit(1)
	}

	// Optional messaging backends; the orchestrator runs without them.
	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PubSub not available - continuing without lifecycle events")
		pubSubClient = nil
	}
	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without lifecycle events")
		azServiceBusClient = nil
	}

	redisPort, _ := strconv.Atoi(configuration.C.RedisClient.Port)
	redisClient, err := cache.NewCache(
		configuration.C.RedisClient.Host,
		redisPort,
		configuration.C.RedisClient.Password,
		0,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - stats caching disabled")
		redisClient = nil
	}

	// Repository wiring: use MSSQL in production, otherwise PostgreSQL.
	var jobRepository repository.IJob
	var credentialRepository repository.ICredential
	if useMSSQL() {
		if err := persistence.EnsurePublishSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
		}
		if err := persistence.EnsureCredentialSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		jobRepository = persistence.NewJobRepositoryMSSQL(db)
		credentialRepository = persistence.NewCredentialRepositoryMSSQL(db)
	} else {
		if err := persistence.EnsurePublishSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
		}
		if err := persistence.EnsureCredentialSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		jobRepository = persistence.NewJobRepository(db)
		credentialRepository = persistence.NewCredentialRepository(db)
	}
	contentRepository := persistence.NewContentRepository(mongoDb, configuration.C.Database.Mongo.Name)

	// Platform adapters
	pub := configuration.C.Publish
	adapters := []repository.IPlatform{
		instagramclient.NewClient(&instagramclient.Config{
			PollInterval:    pub.PollInterval,
			PollMaxAttempts: pub.PollMaxAttempts,
		}),
		tiktokclient.NewClient(&tiktokclient.Config{}),
		youtubeclient.NewClient(&youtubeclient.Config{}),
	}

	// Credential resolver with per-platform refresh exchangers
	exchangers := map[string]usecase.ITokenExchanger{}
	for _, platform := range []string{model.PlatformInstagram, model.PlatformTikTok, model.PlatformYouTube} {
		if conf := httpHandler.OAuthConfig(platform); conf != nil {
			exchangers[platform] = &usecase.OAuthExchanger{Config: conf}
		}
	}
	credentialResolver := usecase.NewCredentialResolver(credentialRepository, exchangers, 60*time.Second)

	// Orchestrator
	policy := usecase.RetryPolicy{
		MaxAttempts: pub.MaxAttempts,
		Base:        pub.BackoffBase,
		Factor:      2.0,
		Cap:         pub.BackoffCap,
		JitterFrac:  0.2,
	}
	publishUC := usecase.NewPublishUsecase(adapters, credentialResolver, jobRepository, contentRepository, policy, pub.ScheduleSkew)

	jobHub := realtime.NewJobHub()
	var pubSubEvents pubsub.IJobEvents
	if pubSubClient != nil {
		pubSubEvents = pubsub.NewJobEvents(pubSubClient)
	}
	var serviceBusEvents servicebus.IJobEvents
	if azServiceBusClient != nil {
		serviceBusEvents = servicebus.NewJobEvents(azServiceBusClient, configuration.C.ServiceBus.Queue)
	}
	publishUC.WithBroadcaster(func(job *model.Job) {
		jobHub.BroadcastJobStatus(job)
		if !job.State.Terminal() {
			return
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return
		}
		if pubSubEvents != nil {
			if _, err := pubSubEvents.Publish(context.Background(), configuration.C.Pubsub.Topic, payload); err != nil {
				logger.GetLogger().WithField("error", err).Warn("failed publishing job event to PubSub")
			}
		}
		if serviceBusEvents != nil {
			if err := serviceBusEvents.SendMessage(payload); err != nil {
				logger.GetLogger().WithField("error", err).Warn("failed publishing job event to Service Bus")
			}
		}
	})
	if redisClient != nil {
		publishUC.WithStatsCache(cache.NewStatsCache(redisClient, pub.StatsCacheTTL))
	}

	healthHandler := httpHandler.NewHealthHandler()
	publishHandler := httpHandler.NewPublishHandler(publishUC)
	connectHandler := httpHandler.NewConnectHandler(credentialRepository)

	router := server.InitiateRouter(healthHandler, publishHandler, connectHandler, jobHub)

	// Background dispatcher for scheduled jobs (simple ticker loop)
	g.Go(func() error {
		ticker := time.NewTicker(pub.DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := publishUC.DispatchDue(ctx, time.Now().UTC(), pub.DispatchBatch); err != nil && !errors.Is(err, context.Canceled) {
					logger.GetLogger().WithField("error", err).Warn("scheduled dispatch failed")
				}
			}
		}
	})

	port := app.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

func useMSSQL() bool {
	if v := os.Getenv("DB_VENDOR"); v == "mssql" {
		return true
	}
	env := os.Getenv("ENV")
	return env == "production" || env == "prod"
}

// InitiateDatabase connects the relational store. Production uses MSSQL,
// everything else PostgreSQL; DB_VENDOR=mssql forces MSSQL locally.
func InitiateDatabase() (*sql.DB, error) {
	if useMSSQL() {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, err
		}
		return db, nil
	}
	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, err
	}
	return db, nil
}
