package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/catalog"
	"dinehall-order-engine/internal/config"
	"dinehall-order-engine/internal/db"
	"dinehall-order-engine/internal/engine"
	httpapi "dinehall-order-engine/internal/http"
	"dinehall-order-engine/internal/logger"
	"dinehall-order-engine/internal/queue"
	"dinehall-order-engine/internal/storage"
	"dinehall-order-engine/internal/store"
	"dinehall-order-engine/internal/tax"
	"dinehall-order-engine/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var (
		engineStore store.Store
		prices      catalog.PriceBook
		resolver    authority.Resolver
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		engineStore = store.NewPostgres(pool)
		prices = &catalog.PGBook{DB: pool}
		resolver = &authority.PGResolver{DB: pool}
		log.Info("postgres store enabled")
	} else {
		engineStore = store.NewMemory()
		prices = devPriceBook()
		resolver = &authority.StaticResolver{Fallback: authority.TierManager}
		log.Warn("DATABASE_URL is empty; running with the in-memory store")
	}

	hub := ws.NewHub(log, cfg.JWTSecret, cfg.WSHeartbeatInterval)

	var sink engine.Sink = hub
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; events go straight to displays", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := queue.SetupTopology(qc); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq topology failed; events go straight to displays", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			defer qc.Close()
			sink = queue.NewPublisher(qc, log)
			log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange))

			go func() {
				err := qc.ConsumeWithRetry(queue.KitchenQueue, hub.BridgeDeliveries(), 5, 5*time.Second)
				if err != nil {
					log.Error("kitchen display consumer stopped", zap.Error(err))
				}
			}()
		}
	} else {
		log.Info("broker disabled (RABBITMQ_URL is empty); events go straight to displays")
	}

	var archive *storage.Archive
	if cfg.ObjectStoreEndpoint != "" && cfg.ObjectStoreBucket != "" {
		archive, err = storage.NewArchive(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			log.Fatal("receipt archive init failed", zap.Error(err))
		}
		log.Info("receipt archive enabled", zap.String("bucket", cfg.ObjectStoreBucket))
	} else {
		log.Info("receipt archive disabled (object store not configured)")
	}

	eng := engine.New(engine.Deps{
		Store:      engineStore,
		Prices:     prices,
		Tax:        tax.BasisPoints{Rate: cfg.TaxRateBps},
		Provider:   billing.AutoApprove{},
		Authority:  resolver,
		VoidPolicy: authority.VoidPolicy{SeniorThreshold: cfg.VoidSeniorThreshold},
		Sink:       sink,
		Logger:     log,
	})

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(eng, log, cfg, archive, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order engine api ready", zap.String("base", "/api"))
		log.Info("kitchen display ws ready", zap.String("path", "/ws/kitchen-display"))
		log.Info("order engine listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// devPriceBook seeds a small static menu so the engine is usable without a
// catalog database.
func devPriceBook() catalog.PriceBook {
	return &catalog.StaticBook{Items: map[int64]catalog.StaticItem{
		1: {Name: "Burger", Price: decimal.RequireFromString("10.00"), Cost: decimal.RequireFromString("4.00")},
		2: {Name: "Fries", Price: decimal.RequireFromString("5.00"), Cost: decimal.RequireFromString("1.50")},
		3: {Name: "Soda", Price: decimal.RequireFromString("2.50"), Cost: decimal.RequireFromString("0.40")},
	}}
}
