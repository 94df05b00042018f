package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/config"
	"github.com/iliyamo/billsplit-floor/internal/database"
	"github.com/iliyamo/billsplit-floor/internal/handler"
	"github.com/iliyamo/billsplit-floor/internal/layout"
	"github.com/iliyamo/billsplit-floor/internal/middleware"
	"github.com/iliyamo/billsplit-floor/internal/notification"
	"github.com/iliyamo/billsplit-floor/internal/orders"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/repository"
	"github.com/iliyamo/billsplit-floor/internal/router"
	"github.com/iliyamo/billsplit-floor/internal/service"
	"github.com/iliyamo/billsplit-floor/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs the shared store and the HTTP middleware.  Without it the
	// process still serves, but contexts on other instances are not kept in
	// step.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Address()).Warn("redis unreachable; rate limiting and caching disabled")
	}
	var store storage.Store
	if cfg.StoreDriver == "redis" && rdb != nil {
		store = storage.NewRedisStore(rdb, cfg.StorePrefix, log)
	} else {
		log.Warn("using in-memory table store; layouts are lost on restart")
		store = storage.NewMemoryStore()
	}

	var publisher *service.Publisher
	var kitchenPub orders.Publisher
	var syncedPub service.SyncedPublisher
	if cfg.RabbitURL != "" {
		publisher = service.NewPublisher(cfg.RabbitURL, log)
		kitchenPub, syncedPub = publisher, publisher
	}

	var db *sql.DB
	var syncer layout.Syncer
	var mirror *service.LayoutMirror
	if cfg.MySQLEnabled() {
		db, err = database.Open(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("database connection failed")
		}
		if cfg.MigrationsEnabled {
			if err := database.Migrate(db); err != nil {
				log.WithError(err).Fatal("migrations failed")
			}
		}
		mirror = service.NewLayoutMirror(repository.NewLayoutRepo(db), syncedPub, log)
		syncer = mirror
	} else {
		log.Info("DB_HOST/DB_NAME not set; layout mirror disabled")
	}

	registry := layout.NewRegistry(store, syncer, cfg.StorePrefix, log)
	notes := notification.NewService(store, cfg.StorePrefix, log)
	orderSvc := orders.NewService(store, cfg.StorePrefix, kitchenPub, log)

	consumerDone := make(chan struct{})
	if cfg.RabbitURL != "" {
		go func() {
			defer close(consumerDone)
			if err := queue.StartKitchenConsumer(ctx, cfg.RabbitURL, notes.HandleSentToKitchen, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("kitchen consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))

	var mirrorHandler *handler.MirrorHandler
	if mirror != nil {
		mirrorHandler = handler.NewMirrorHandler(mirror)
	}
	guards := router.Guards{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Cache:     middleware.NewResponseCache(cfg.Cache, rdb, log),
	}
	router.RegisterRoutes(e)
	router.RegisterTables(e, handler.NewTableHandler(registry), mirrorHandler, guards)
	router.RegisterOrders(e, handler.NewOrderHandler(orderSvc), guards)
	router.RegisterNotifications(e, handler.NewNotificationHandler(notes), guards)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := registry.Close(); err != nil {
		log.WithError(err).Warn("closing floor managers")
	}
	<-consumerDone
	if publisher != nil {
		_ = publisher.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	closeRedis(rdb, log)
}

func closeRedis(rdb *redis.Client, log logrus.FieldLogger) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.WithError(err).Warn("closing redis")
	}
}
