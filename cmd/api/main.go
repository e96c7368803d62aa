package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rozoom/shop-api/internal/bootstrap"
	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/catalog"
	"github.com/rozoom/shop-api/internal/checkout"
	"github.com/rozoom/shop-api/internal/config"
	"github.com/rozoom/shop-api/internal/httpx"
	kafkax "github.com/rozoom/shop-api/internal/kafka"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/postgres"
	"github.com/rozoom/shop-api/internal/projects"
	"github.com/rozoom/shop-api/internal/redisx"
	"github.com/rozoom/shop-api/internal/stripex"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schema bootstrap runs first, on its own database/sql connection.
	// Table failures are logged per table inside Run and never abort boot.
	schemas := bootstrap.Schemas{
		Users:    cfg.SchemaUsers,
		Shop:     cfg.SchemaShop,
		Clients:  cfg.SchemaClients,
		Projects: cfg.SchemaProjects,
	}
	boot, err := bootstrap.Open(cfg.DatabaseURL, schemas, cfg.Production())
	if err != nil {
		log.Fatalf("bootstrap open: %v", err)
	}
	if err := boot.Run(ctx); err != nil {
		log.Printf("bootstrap: %v (continuing with existing schema)", err)
	}

	// Request-path pool with search_path across all shop schemas.
	mgr, err := postgres.NewManager(ctx, cfg.DatabaseURL, cfg.Schemas())
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer mgr.Close()
	db := mgr.Pool()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pub := &httpx.Publishers{
		Service:       cfg.ServiceName,
		Created:       kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024),
		Paid:          kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024),
		PaymentFailed: kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaymentFailed, 1024),
		Cancelled:     kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024),
	}
	producers := []*kafkax.Producer{pub.Created, pub.Paid, pub.PaymentFailed, pub.Cancelled}
	for _, p := range producers {
		p.Start(ctx)
	}

	stripeClient := stripex.NewClient(stripex.ClientOptions{SecretKey: cfg.StripeSecretKey})

	cartRepo := &cart.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	projectRepo := &projects.Repo{DB: db}

	checkoutSvc := &checkout.Service{
		Store:       &checkout.PGStore{DB: db, Stock: cfg.Stock, Currency: cfg.Currency},
		Payments:    stripeClient,
		BaseURL:     cfg.BaseURL,
		Currency:    cfg.Currency,
		TestPriceID: cfg.StripeTestPriceID,
	}

	router := httpx.NewRouter()
	(&httpx.HealthHandler{DB: mgr, Schema: boot, Redis: rdb}).Register(router)
	(&httpx.CatalogHandler{Products: catalogRepo}).Register(router)
	(&httpx.CartHandler{
		Carts: cartRepo, Products: catalogRepo, Redis: rdb,
		AllowZeroPrice: cfg.AllowZeroPrice,
	}).Register(router)
	(&httpx.CheckoutHandler{
		Checkout: checkoutSvc, Carts: cartRepo, Orders: orderRepo,
		Projects: projectRepo, Redis: rdb, Pub: pub,
	}).Register(router)
	(&httpx.OrdersHandler{Orders: orderRepo, Redis: rdb}).Register(router)
	(&httpx.WebhookHandler{
		Secret: cfg.StripeWebhookSecret, Orders: orderRepo,
		Projects: projectRepo, Guard: &httpx.RedisReplayGuard{Client: rdb},
		Redis: rdb, Pub: pub,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	_ = boot.Close()
	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
