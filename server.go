package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/handlers"
	"bitbucket.org/mmdatafocus/cari_backend/middlewares"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "code": "not_found"})
}

// switchableHandler serves the bootstrap router until the API router is installed.
type switchableHandler struct {
	current atomic.Pointer[gin.Engine]
}

func (h *switchableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.current.Load().ServeHTTP(w, r)
}

// bootstrapRouter answers the startup probe while DB/Redis are still connecting.
func bootstrapRouter() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service starting", "code": "unavailable"})
	})
	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	if config.IsProduction() {
		cfg.AllowOrigins = utils.SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if len(cfg.AllowOrigins) == 0 {
			// deny all cross-origin requests when no allowlist is configured
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", handlers.IdempotencyKeyHeader, middlewares.CorrelationIdHeader, middlewares.ActorHeader)
	cfg.AddExposeHeaders("Content-Length", middlewares.CorrelationIdHeader)
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

func apiRouter(db *gorm.DB, ledger *workflow.Ledger, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.Use(cors.New(corsConfig()))

	if config.RateLimitEnabled() {
		if client := config.GetRedisDB(); client != nil {
			window := time.Duration(config.RateLimitWindowSeconds()) * time.Second
			r.Use(middlewares.NewRateLimiter(client, config.RateLimitMaxRequests(), window).RateLimitMiddleware)
		} else {
			logger.WithFields(logrus.Fields{"field": "rate_limit"}).Warn("RATE_LIMIT_ENABLED but redis is unavailable; not limiting")
		}
	}

	r.Use(middlewares.LoaderMiddleware())
	r.Use(middlewares.CustomErrorLogger(logger))
	r.Use(gin.Recovery())

	handlers.RegisterRoutes(r.Group("/api"), ledger, logger)
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.GetLogger()
	settings := config.LoadSettings()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are ready; the bootstrap router returns 503 until then.
	handler := &switchableHandler{}
	handler.current.Store(bootstrapRouter())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	db := config.ConnectDatabaseWithRetry()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// Redis is optional; give up after a few attempts instead of blocking startup.
	config.ConnectRedisWithRetry(sigCtx, 5)

	// AutoMigrate can block tables; large deployments run `ledgerctl migrate` as a job instead.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	var mailer workflow.Mailer = workflow.LogMailer{Logger: logger}
	if settings.NotificationTopic != "" {
		mailer = workflow.PubSubMailer{Topic: settings.NotificationTopic}
	}
	dispatcher := workflow.NewNotificationDispatcher(db, logger, mailer, settings)

	var locker workflow.CustomerLocker
	if settings.ConsolidationLockEnabled {
		if client := config.GetRedisLock(); client != nil {
			locker = workflow.NewRedisCustomerLocker(client)
		}
	}
	ledger := workflow.NewLedger(db, logger, settings, dispatcher, locker)

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcher.Start(dispatcherCtx)

	handler.current.Store(apiRouter(db, ledger, logger))
	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("ledger API listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Stop notification workers after requests drained so late signatures still get queued.
	cancelDispatcher()
	dispatcher.Wait()

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	if strings.TrimSpace(settings.NotificationTopic) != "" {
		config.ClosePubSub()
	}
}
