package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	controller "mailblast/controllers"
	"mailblast/engine"
	"mailblast/middleware"
)

func SetupRoutes(app *fiber.App, e *engine.Engine) {
	campaignController := controller.NewCampaignController(e, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	contactController := controller.NewContactController(e, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public tracking endpoints; links in delivered email hit these without
	// any authentication.
	app.Get("/track/open/:token", campaignController.HandleOpenTracking)
	app.Get("/track/click/:token", campaignController.HandleClickTracking)
	app.Get("/unsubscribe/:token", campaignController.HandleUnsubscribe)

	// Provider delivery callbacks
	app.Post("/webhooks/delivery", campaignController.HandleDeliveryWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Post("/:id/schedule", campaignController.ScheduleCampaign)
	campaign.Post("/:id/send", campaignController.SendCampaign)
	campaign.Post("/:id/pause", campaignController.PauseCampaign)
	campaign.Post("/:id/resume", campaignController.ResumeCampaign)
	campaign.Post("/:id/cancel", campaignController.CancelCampaign)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)
	campaign.Get("/:id/recipients", campaignController.GetCampaignRecipients)
	campaign.Post("/:id/recipients", campaignController.AddRecipient)
	campaign.Delete("/:id/recipients", campaignController.RemoveRecipient)

	// WebSocket progress stream; runs behind the same auth middleware, the
	// handler reads the account and campaign id captured at upgrade time.
	campaign.Get("/:id/progress", websocket.New(func(conn *websocket.Conn) {
		campaignController.HandleCampaignProgressWS(conn)
	}))

	// Contact routes
	contact := api.Group("/contacts")
	contact.Post("/", contactController.CreateContact)
	contact.Get("/", contactController.GetContacts)
	contact.Get("/export", contactController.ExportContacts)
	contact.Get("/:id", contactController.GetContact)
	contact.Put("/:id", contactController.UpdateContact)
	contact.Put("/:id/status", contactController.UpdateContactStatus)
	contact.Post("/:id/tags", contactController.AddTag)
	contact.Delete("/:id/tags/:tag", contactController.RemoveTag)
	contact.Post("/bulk-delete", contactController.BulkDeleteContacts)
	contact.Post("/import", middleware.ImportRateLimiter(), contactController.ImportContacts)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
