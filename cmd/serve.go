package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/obs"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/sequence"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- document store ---
	mongoClient, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("mongo_connect_failed", "error", err)
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	logger.Info("mongo_connected", "database", cfg.MongoDatabase)

	// --- relational store ---
	pool, err := db.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.PostgresDSN(), logger); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
	}

	// --- change events ---
	var publisher events.ProductPublisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, pub, err := openPublisher(cfg.RabbitMQURL, sequence.NewRepository(pool))
		if err != nil {
			return err
		}
		defer conn.Close()
		defer pub.Close()
		publisher = pub
		logger.Info("events_enabled", "exchange", events.EventsExchange)
	} else {
		logger.Info("events_disabled")
	}

	// --- HTTP ---
	metrics := obs.NewMetrics()
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Documents:        product.NewMongoRepository(mongoClient.Database(cfg.MongoDatabase)),
		Records:          product.NewPostgresRepository(pool),
		Publisher:        publisher,
		Logger:           logger,
		Metrics:          metrics,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		logger.Error("http_server_failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_incomplete", "error", err)
	}

	logger.Info("shutdown_complete")
	return nil
}

func openPublisher(url string, seq events.Sequencer) (*amqp.Connection, *events.Publisher, error) {
	conn, err := events.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	pub, err := events.NewPublisher(conn, events.PublisherOptions{Sequencer: seq})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
	}
	return conn, pub, nil
}
