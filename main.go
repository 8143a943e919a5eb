package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/docrev/docrev/internal/archive"
	"github.com/docrev/docrev/internal/config"
	"github.com/docrev/docrev/internal/database"
	"github.com/docrev/docrev/internal/document/handler"
	"github.com/docrev/docrev/internal/document/repository"
	"github.com/docrev/docrev/internal/document/service"
	"github.com/docrev/docrev/pkg/logger"
	"github.com/docrev/docrev/pkg/metrics"
	"github.com/docrev/docrev/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (LOG_LEVEL: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v archive=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Archive.Endpoint != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Optional Redis-backed rate limiting; falls back to the in-memory
	// limiter when Redis is unreachable or unconfigured.
	if cfg.RateLimit.Enabled {
		var client *redis.Client
		if cfg.Redis.Host != "" {
			client = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			if err := client.Ping(context.Background()).Err(); err != nil {
				logger.Warnf("redis unreachable (%s:%s), using in-memory rate limiter: %v", cfg.Redis.Host, cfg.Redis.Port, err)
				client = nil
			}
		}
		r.Use(middleware.RedisRateLimitMiddleware(client, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
	}

	// Prefer the Mongo-backed store; fall back to memory when no URI is
	// configured or the connection fails, so the service stays usable for
	// local development.
	var store repository.Store
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using in-memory store", err)
			store = repository.NewMemoryStore(cfg.Documents.PrimaryKeyField)
		} else {
			col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
			store = repository.NewMongoStore(col, cfg.Documents.PrimaryKeyField)
			logger.Infof("connected to MongoDB database %q", cfg.MongoDB.Database)
		}
	} else {
		logger.Warnf("MONGODB_URI not set, using in-memory store")
		store = repository.NewMemoryStore(cfg.Documents.PrimaryKeyField)
	}

	svc := service.New(store, service.Options{
		PrimaryKeyField: cfg.Documents.PrimaryKeyField,
		DefaultPageSize: cfg.Documents.DefaultPageSize,
		MaxPageSize:     cfg.Documents.MaxPageSize,
	})

	var archiveStore *archive.Store
	if cfg.Archive.Endpoint != "" {
		archiveStore, err = archive.NewStore(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			logger.Warnf("archive storage disabled: %v", err)
			archiveStore = nil
		}
	}

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "uptime": time.Since(startTime).String()})
	})

	handler.RegisterDocumentRoutes(r, svc, archiveStore)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Infof("docrev listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
