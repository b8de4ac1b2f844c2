package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/wifiobd/shopbot/internal/admin"
	"github.com/wifiobd/shopbot/internal/bot"
	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/config"
	"github.com/wifiobd/shopbot/internal/logging"
	"github.com/wifiobd/shopbot/internal/notify"
	"github.com/wifiobd/shopbot/internal/opencart"
	"github.com/wifiobd/shopbot/internal/order"
	"github.com/wifiobd/shopbot/internal/payment"
	"github.com/wifiobd/shopbot/internal/support"
	"github.com/wifiobd/shopbot/internal/user"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("конфигурация: %v", err)
	}

	logger := logging.New(cfg.LOG_LEVEL).With("service", "shopbot")
	slog.SetDefault(logger)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("БД бота: %v", err)
	}

	ocDB, err := config.InitOpenCartDB(cfg)
	if err != nil {
		log.Fatalf("БД OpenCart: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.REDIS_ADDR,
		Password: cfg.REDIS_PASSWORD,
		DB:       cfg.REDIS_DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	pingCancel()

	// поиск опционален: без ES каталог работает через LIKE
	var esClient *elasticsearch.Client
	if cfg.ES_URL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{cfg.ES_URL},
			Username:  cfg.ES_USER,
			Password:  cfg.ES_PASSWORD,
		})
		if err != nil {
			logger.Warn("elasticsearch недоступен, поиск через БД", "error", err)
			esClient = nil
		}
	}

	catalogReader := catalog.NewReader(ocDB, esClient, "products")
	cartStore := cart.NewStore(rdb, catalogReader, time.Duration(cfg.CART_EXPIRE_DAYS)*24*time.Hour, logger)
	users := user.NewService(db, logger)
	sessions := checkout.NewSessionStore(rdb, time.Duration(cfg.SESSION_TTL_MINUTES)*time.Minute)
	dialogue := checkout.NewDialogue(sessions, cartStore, users, logger)

	orders := order.NewService(db, logger)
	gateway := payment.NewYooKassa(cfg.YOOKASSA_SHOP_ID, cfg.YOOKASSA_SECRET_KEY, cfg.OPENCART_URL, logger)
	sup := support.NewService(db, logger)

	var events *notify.Producer
	if cfg.KAFKA_ADDRESS != "" {
		events = notify.NewProducer(cfg.KAFKA_ADDRESS, logger)
		defer events.Close()
	}

	ocClient := opencart.NewClient(cfg.OPENCART_API_URL, cfg.OPENCART_API_TOKEN, logger)
	mirror := opencart.NewMirror(orders, users, ocClient, time.Minute, logger)

	// типизированный nil в интерфейсе обернулся бы в не-nil значение
	var eventsSink order.Events
	if events != nil {
		eventsSink = events
	}
	rec := order.NewReconciler(orders, cartStore, gateway, mirror, eventsSink, logger)

	tgBot, err := bot.New(cfg.BOT_TOKEN, bot.Deps{
		Catalog:    catalogReader,
		Cart:       cartStore,
		Dialogue:   dialogue,
		Users:      users,
		Orders:     orders,
		Reconciler: rec,
		Support:    sup,
		Events:     events,
	}, cfg.ADMIN_IDS, logger)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mirror.Run(ctx)
	go tgBot.Run(ctx)

	// админский HTTP API
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORS())

	adminSrv := admin.NewServer(orders, rec, users, sup, tgBot, []byte(cfg.JWT_SECRET), cfg.ADMIN_PASSWORD_HASH, logger)
	admin.Register(e, adminSrv)

	srv := &http.Server{
		Addr:              cfg.ADMIN_HTTP_ADDR,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("админский API запущен", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if sqlDB, err := ocDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("бот остановлен")
}
