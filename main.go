package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"debtbook/internal/handlers"
	"debtbook/internal/middleware"
	"debtbook/internal/models"
	"debtbook/internal/repositories"
	"debtbook/internal/services"
	"debtbook/pkg/rabbitmq"

	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	// Set up Viper to read configuration from environment variables
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_DSN", "debtbook.db")
	viper.SetDefault("JWT_SECRET", "debtbook_dev_secret")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")
	jwtSecret := viper.GetString("JWT_SECRET")
	rabbitMQURL := viper.GetString("RABBITMQ_URL")

	// --- Initialize Repositories ---
	userRepo, customerRepo := openRepositories()

	// --- Initialize RabbitMQ Client (optional) ---
	// An empty RABBITMQ_URL disables the ledger-event stream entirely; a
	// configured but unreachable broker is logged and skipped so the ledger
	// itself stays available.
	var mqClient *rabbitmq.Client
	if rabbitMQURL != "" {
		var err error
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: rabbitMQURL})
		if err != nil {
			log.Printf("Failed to initialize RabbitMQ client, continuing without events: %v", err)
		} else {
			defer mqClient.Close() // Ensure the connection is closed on exit
		}
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, jwtSecret)
	var publisher services.Publisher
	if mqClient != nil {
		publisher = mqClient
	}
	ledgerService := services.NewLedgerService(customerRepo, publisher)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	customerHandler := handlers.NewCustomerHandler(ledgerService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	// Public authentication and recovery routes
	authHandler.RegisterRoutes(apiV1)

	// Protected routes (require a valid session token)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterAccountRoutes(protectedRoutes)
	customerHandler.RegisterRoutes(protectedRoutes)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start RabbitMQ Consumer in a Goroutine ---
	// The consumer just logs ledger events; downstream systems would hook in
	// here (notifications, reporting, etc.).
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for ledger events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received ledger event %s (Tag: %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := mqClient.ConsumeLedgerEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openRepositories selects the storage backend from configuration.
//
// The default sqlite backend is best-effort: if the local database cannot be
// opened or migrated, the error is logged and the service degrades to the
// in-memory repositories rather than failing to start. An explicitly
// requested postgres backend is fatal on failure, since the operator asked
// for that database.
func openRepositories() (repositories.UserRepository, repositories.CustomerRepository) {
	driver := viper.GetString("DATABASE_DRIVER")
	dsn := viper.GetString("DATABASE_DSN")

	switch driver {
	case "memory":
		log.Println("Using in-memory repositories; data will not survive a restart")
		return repositories.NewMemoryUserRepository(), repositories.NewMemoryCustomerRepository()

	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		if err := db.AutoMigrate(&models.User{}, &models.Customer{}, &models.Transaction{}); err != nil {
			log.Fatalf("Failed to migrate postgres database: %v", err)
		}
		return repositories.NewGORMUserRepository(db), repositories.NewGORMCustomerRepository(db)

	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err == nil {
			err = db.AutoMigrate(&models.User{}, &models.Customer{}, &models.Transaction{})
		}
		if err != nil {
			log.Printf("Failed to open sqlite database %s, falling back to in-memory repositories: %v", dsn, err)
			return repositories.NewMemoryUserRepository(), repositories.NewMemoryCustomerRepository()
		}
		return repositories.NewGORMUserRepository(db), repositories.NewGORMCustomerRepository(db)

	default:
		log.Fatalf("Unknown DATABASE_DRIVER %q (expected sqlite, postgres or memory)", driver)
		return nil, nil
	}
}
