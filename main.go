package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"mailblast/config"
	"mailblast/engine"
	"mailblast/middleware"
	"mailblast/routes"
	"mailblast/utils"
	"mailblast/worker"
)

func main() {
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	engineLog := logrus.New()
	engineLog.SetFormatter(&logrus.JSONFormatter{})

	mailer := utils.NewSMTPMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
		config.AppConfig.FromEmail,
		config.AppConfig.TrackingBaseURL,
		engineLog,
	)
	gate := engine.NewCreditGate(config.DB, config.AppConfig.SendCostPerRecipient)

	e := engine.New(config.DB, gate, mailer, engineLog, engine.Options{
		DispatchConcurrency: config.AppConfig.DispatchConcurrency,
		DispatchTimeout:     config.AppConfig.DispatchTimeout(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedulerWorker := worker.NewSchedulerWorker(e, log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags))
	go schedulerWorker.Start(ctx)

	completionWorker := worker.NewCompletionWorker(e, log.New(os.Stdout, "COMPLETION: ", log.LstdFlags))
	go completionWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, e)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
