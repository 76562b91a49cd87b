package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/messaging"
	"restaurant-ordering/internal/services/notification"
	"restaurant-ordering/internal/services/order"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port     int
		seedFile string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"order-service"},
		Short:   "Run the order HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load("order-service")
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return runOrderService(cmd.Context(), cfg, log, seedFile)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML catalog to load before serving")
	return cmd
}

func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, seedFile string) error {
	requestID := logger.GenerateRequestID()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seedCatalog(ctx, store, seedFile, log); err != nil {
		return err
	}

	// a nil interface, not a nil *Publisher, disables events
	var publisher order.EventPublisher
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)
		publisher = messaging.NewPublisher(conn, log)
	} else {
		log.Warn("events_disabled", "RabbitMQ disabled, order events will not be published", requestID, nil)
	}

	service := order.NewService(store, publisher, log, order.Options{
		ResolveConcurrency: cfg.Ordering.ResolveConcurrency,
	})
	handler := order.NewHandler(service, log, cfg.Ordering.RequestTimeout)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRoutes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("service_started", fmt.Sprintf("Order Service started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
		"port":                cfg.Server.Port,
		"storage":             cfg.Storage.Driver,
		"resolve_concurrency": cfg.Ordering.ResolveConcurrency,
	})
	return serveHTTP(ctx, server, log)
}

func newNotifyCmd(root *rootOptions) *cobra.Command {
	var prefetch int
	cmd := &cobra.Command{
		Use:     "notify",
		Aliases: []string{"notification-subscriber"},
		Short:   "Relay order events to websocket clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load("notification-subscriber")
			if err != nil {
				return err
			}
			return runNotificationSubscriber(cmd.Context(), cfg, log, prefetch)
		},
	}
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "RabbitMQ prefetch count")
	return cmd
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	hub := notification.NewHub(log)
	subscriber := notification.NewSubscriber(consumer, hub, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.NotificationPort),
		Handler:           subscriber.SetupRoutes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- serveHTTP(ctx, server, log) }()

	log.Info("service_started", fmt.Sprintf("Notification subscriber listening on port %d", cfg.Server.NotificationPort), "", nil)
	if err := subscriber.Start(ctx); err != nil {
		return err
	}
	return <-serverErr
}

// serveHTTP runs server until ctx is done, then shuts it down gracefully
func serveHTTP(ctx context.Context, server *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("graceful_shutdown", "Shutting down HTTP server", "", map[string]interface{}{"addr": server.Addr})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
