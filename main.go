package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookstore/internal/config"
	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/notifications"
	"bookstore/internal/observability"
	"bookstore/internal/repositories"
	"bookstore/internal/scheduler"
	"bookstore/internal/services"
	"bookstore/pkg/rabbitmq"
)

// App bundles the HTTP server with the services behind it.
type App struct {
	Fiber     *fiber.App
	Auth      *services.AuthService
	Orders    *services.OrderService
	Scheduler *scheduler.Runner
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the structured logger is not configured yet
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	var notifier services.Notifier = notifications.NewLogNotifier(log.Named("notifications"))
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log.Named("rabbitmq"))
		if err != nil {
			return errors.Wrap(err, "initialize RabbitMQ client")
		}
		defer func() {
			if err := mqClient.Close(); err != nil {
				log.Warn("closing RabbitMQ client", zap.Error(err))
			}
		}()
		notifier = notifications.NewAMQPNotifier(mqClient, log.Named("notifications"))

		if err := mqClient.ConsumeOrderEvents(ctx, notifications.MessageHandler(log.Named("dispatch"))); err != nil {
			log.Warn("failed to start RabbitMQ consumer", zap.Error(err))
		}
	} else {
		log.Info("RABBITMQ_URL not set, notifications are only logged")
	}

	app, err := NewApp(cfg, db, notifier, log)
	if err != nil {
		return err
	}

	schedulerDone := make(chan error, 1)
	if app.Scheduler != nil {
		go func() { schedulerDone <- app.Scheduler.Start(ctx) }()
	} else {
		close(schedulerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.AppPort))
		serverErr <- app.Fiber.Listen(cfg.AppPort)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serverErr:
		stop()
		return errors.Wrap(err, "server failed")
	}

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("error during Fiber shutdown", zap.Error(err))
	}
	if err := <-schedulerDone; err != nil {
		log.Warn("scheduler stopped with error", zap.Error(err))
	}
	log.Info("server gracefully stopped")
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s database", cfg.DatabaseDriver)
	}
	return db, nil
}

// NewApp wires repositories, services and handlers on top of db.
func NewApp(cfg *config.Config, db *gorm.DB, notifier services.Notifier, log *zap.Logger) (*App, error) {
	bookRepo := repositories.NewGORMBookRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, log.Named("auth"))
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     orderRepo,
		Books:      bookRepo,
		Payments:   repositories.NewGORMPaymentRepository(db),
		Inventory:  services.NewInventoryService(bookRepo, log.Named("inventory")),
		Promotions: services.NewPromotionService(repositories.NewGORMVoucherRepository(db), log.Named("promotions")),
		Addresses:  repositories.NewGORMAddressRepository(db),
		Providers:  repositories.NewGORMShippingProviderRepository(db),
		Carts:      repositories.NewGORMCartRepository(db),
		Users:      userRepo,
		Notifier:   notifier,
		Transactor: repositories.NewGORMTransactor(db),
		Logger:     log.Named("orders"),
	})
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{AppName: "bookstore-fulfillment"})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status, dbStatus := fiber.StatusOK, "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status, dbStatus = fiber.StatusServiceUnavailable, "unavailable"
		}
		health := "healthy"
		if status != fiber.StatusOK {
			health = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   health,
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
		})
	})

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, log.Named("http")).RegisterRoutes(apiV1)
	protected := apiV1.Group("", middleware.AuthRequired(authService, log.Named("http")))
	handlers.NewOrderHandler(orderService, log.Named("http")).RegisterRoutes(protected)

	var runner *scheduler.Runner
	if cfg.Scheduler.Enabled {
		sc := cfg.Scheduler
		runner = scheduler.New(scheduler.Config{
			ProgressionInterval: sc.ProgressionInterval,
			ProgressionBatch:    sc.ProgressionBatch,
			AutoConfirm:         sc.AutoConfirm,
			StaleInterval:       sc.StaleInterval,
			StaleMaxAge:         sc.StaleMaxAge,
			StaleBatch:          sc.StaleBatch,
			ShipmentInterval:    sc.ShipmentInterval,
			ShipmentWindow:      sc.ShipmentWindow,
			ShipmentBatch:       sc.ShipmentBatch,
			RunTimeout:          sc.RunTimeout,
		}, orderRepo, orderService, notifier, log)
	}

	return &App{
		Fiber:     app,
		Auth:      authService,
		Orders:    orderService,
		Scheduler: runner,
	}, nil
}
