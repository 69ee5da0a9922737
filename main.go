package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"grocer/internal/cache"
	"grocer/internal/checkout"
	"grocer/internal/config"
	"grocer/internal/handlers"
	"grocer/internal/middleware"
	"grocer/internal/models"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/pricing"
	"grocer/internal/repositories"
	"grocer/internal/services"
	"grocer/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}

	// The broker is optional; without it events are not published.
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: services.EventExchange})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		if err := mqClient.ConsumeOrderEvents(services.HandleOrderEvent); err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
	} else {
		log.Println("RABBITMQ_URL is not set. Order events and notifications will only be logged.")
	}

	app, err := newApp(cfg, db, rdb, mqClient)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	return gorm.Open(dialector, &gorm.Config{TranslateError: true})
}

// newApp migrates the schema, seeds reference data and wires every handler.
// mqClient may be nil.
func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mqClient *rabbitmq.Client) (*fiber.App, error) {
	if err := db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.PromoCode{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	promoRepo := repositories.NewGORMPromoRepository(db)

	var (
		events services.EventPublisher
		sink   notify.Sink = notify.LogSink{}
	)
	if mqClient != nil {
		events = mqClient
		broker := notify.NewBrokerSink(mqClient, mqClient.Exchange())
		sink = notify.SinkFunc(func(ctx context.Context, n notify.Notification) error {
			notify.LogSink{}.Notify(ctx, n)
			return broker.Notify(ctx, n)
		})
	}

	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, events)
	promoService := services.NewPromoService(promoRepo)
	authService := services.NewAuthService(userRepo, cache.NewRedisDenylist(rdb), cfg.JWTSecret, cfg.TokenTTL)

	orchestrator := checkout.NewOrchestrator(newGateway(cfg), orderService, promoService, sink, checkout.Config{
		Rates: pricing.DeliveryRates{
			Standard:      cfg.DeliveryFeeStandard,
			Express:       cfg.DeliveryFeeExpress,
			Scheduled:     cfg.DeliveryFeeScheduled,
			FreeThreshold: cfg.FreeDeliveryThreshold,
		},
		ServiceFeePercent: cfg.ServiceFeePercent,
	})
	sessions := services.NewSessionStore(orchestrator, cache.NewRedisCache(rdb))
	sessions.StartEviction(cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	cartService := services.NewCartService(sessions, productService)
	checkoutService := services.NewCheckoutService(sessions)

	seedProducts(productService)
	if err := authService.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Printf("Error seeding admin account: %v", err)
	}

	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)
	promoHandler := handlers.NewPromoHandler(promoService)

	app := fiber.New()
	app.Hooks().OnShutdown(func() error {
		sessions.StopEviction()
		return nil
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + handlers.SessionHeader,
		ExposeHeaders: handlers.SessionHeader,
	}))

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	cartHandler.RegisterRoutes(apiV1)
	checkoutHandler.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService), middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterRoutes(admin)
	promoHandler.RegisterRoutes(admin)
	checkoutHandler.RegisterAdminRoutes(admin)

	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "up",
			"redis":    "up",
			"rabbitmq": "disabled",
		}
		code := fiber.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status["database"], status["status"], code = "down", "degraded", fiber.StatusServiceUnavailable
		}
		if err := rdb.Ping(c.UserContext()).Err(); err != nil {
			status["redis"], status["status"], code = "down", "degraded", fiber.StatusServiceUnavailable
		}
		if mqClient != nil {
			status["rabbitmq"] = "connected"
		}
		return c.Status(code).JSON(status)
	})

	return app, nil
}

func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.PaymentProvider == "http" {
		return payment.NewHTTPGateway(cfg.PaymentEndpoint, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	}
	log.Println("Using the sandbox payment gateway. No real payments will be taken.")
	return payment.NewSandboxGateway()
}

// seedProducts fills an empty catalogue with a few staple groceries.
func seedProducts(service *services.ProductService) {
	existing, err := service.GetAllProducts(repositories.ProductFilter{})
	if err != nil || len(existing) > 0 {
		return
	}
	products := []models.Product{
		{Name: "Bananas", Description: "Bunch of five", Category: "fruit", Price: decimal.RequireFromString("0.99"), Stock: 200},
		{Name: "Whole Milk", Description: "2 pints", Category: "dairy", Price: decimal.RequireFromString("1.15"), Stock: 120},
		{Name: "Sourdough Bread", Description: "800g loaf", Category: "bakery", Price: decimal.RequireFromString("3.20"), Stock: 40},
		{Name: "Free Range Eggs", Description: "Box of 12", Category: "dairy", Price: decimal.RequireFromString("2.80"), Stock: 60},
	}
	for i := range products {
		if err := service.CreateProduct(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}
