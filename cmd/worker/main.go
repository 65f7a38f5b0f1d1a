// The worker consumes booking events from Kafka and delivers ticket mails.
// It runs separately from the API server so a slow mail path never backs up
// into request handling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/avoronin/cineseat/internal/config"
	"github.com/avoronin/cineseat/internal/email"
	"github.com/avoronin/cineseat/internal/notify"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer := notify.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(logger)

	logger.Info("notification worker started",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.NotificationsTopic,
		"group", cfg.Kafka.GroupID)

	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
		var ev notify.BookingEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode booking event", "error", err)
			return nil
		}
		if err := sender.Send(ctx, ev); err != nil {
			logger.Error("failed to send ticket email",
				"booking_id", ev.BookingID,
				"error", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("notification worker stopped")
}
