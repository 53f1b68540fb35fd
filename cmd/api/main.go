package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/config"
	"github.com/ariefcatur/go-shop-api.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/logging"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (satu per topic)
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	pStatus.Start(ctx)

	// Stores & services
	store := &orders.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	signer := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenTTL)

	router := httpx.NewRouter()

	ah := &httpx.AuthHandler{Users: &auth.Repo{DB: db}, Signer: signer, Log: log}
	ah.Register(router)

	ch := &httpx.CatalogHandler{
		Products: catalogRepo,
		Categories: &catalog.CategoryCache{
			Source: catalogRepo,
			Redis:  rdb,
			Key:    redisx.KeyCategories,
			TTL:    redisx.TTLCategoryCache,
			Log:    log,
		},
		Log: log,
	}
	ch.Register(router)

	oh := &httpx.OrdersHandler{
		Service:         orders.NewService(store),
		Query:           orders.NewQuery(store),
		CreatedProducer: pCreated,
		StatusProducer:  pStatus,
		Redis:           rdb,
		ServiceName:     cfg.ServiceName,
		Log:             log,
	}
	oh.Register(router, signer)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // tutup inbox -> flush & close writer
	pStatus.Close()
	cancel() // stop producer loop
	pCreated.WaitClosed()
	pStatus.WaitClosed()
}
