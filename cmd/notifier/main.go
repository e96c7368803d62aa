package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rozoom/shop-api/internal/config"
	kafkax "github.com/rozoom/shop-api/internal/kafka"
	"github.com/rozoom/shop-api/internal/notify"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/redisx"
)

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := os.Getenv("NOTIFIER_GROUP")
	if group == "" {
		group = "shop-notifier"
	}
	workers := intEnv("NOTIFIER_WORKERS", 4)

	topics := []string{
		orders.TopicOrderCreated,
		orders.TopicOrderPaid,
		orders.TopicOrderPaymentFailed,
		orders.TopicOrderCancelled,
	}
	done := make(chan struct{}, len(topics))
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers)
		go func(topic string) {
			defer func() { done <- struct{}{} }()
			log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, topic, workers)
			onErr := func(err error) {
				log.Printf("notifier %s: %v", topic, err)
			}
			if err := cons.Start(ctx, svc.HandleOrderEvent, onErr); err != nil {
				log.Printf("consumer %s exit: %v", topic, err)
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down...")
		cancel()
	case <-ctx.Done():
	}
	for range topics {
		<-done
	}
}
