package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"mailblast/models"
	"mailblast/utils"
)

// transparentPixel is a 1x1 transparent GIF returned by the open tracker.
var transparentPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// HandleDeliveryWebhook ingests provider callbacks. Events may arrive out of
// order or more than once; the ledger converges regardless, so every applied
// or no-op event answers 200.
func (cc *CampaignController) HandleDeliveryWebhook(c *fiber.Ctx) error {
	var input struct {
		CampaignID uint      `json:"campaign_id" validate:"required"`
		Email      string    `json:"email" validate:"required,email"`
		Event      string    `json:"event" validate:"required"`
		Timestamp  time.Time `json:"timestamp"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	status, ok := webhookEventStatus(input.Event)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown event type", nil)
	}

	recipient, err := cc.Engine.RecordEvent(c.Context(), input.CampaignID, input.Email, status, input.Timestamp)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"email":  recipient.Email,
		"status": recipient.Status,
	}))
}

func webhookEventStatus(event string) (string, bool) {
	switch event {
	case "sent":
		return models.RecipientStatusSent, true
	case "delivered":
		return models.RecipientStatusDelivered, true
	case "opened", "open":
		return models.RecipientStatusOpened, true
	case "clicked", "click":
		return models.RecipientStatusClicked, true
	case "bounced", "bounce":
		return models.RecipientStatusBounced, true
	case "unsubscribed", "unsubscribe":
		return models.RecipientStatusUnsubscribed, true
	}
	return "", false
}

// HandleOpenTracking serves the pixel. The pixel is always returned, even
// when the token no longer resolves, so broken images never leak which
// recipients exist.
func (cc *CampaignController) HandleOpenTracking(c *fiber.Ctx) error {
	token := c.Params("token")

	if _, err := cc.Engine.RecordEventByToken(c.Context(), token, models.RecipientStatusOpened, time.Now()); err != nil {
		cc.Logger.Printf("open tracking for unknown token")
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(transparentPixel)
}

// HandleClickTracking records the click and redirects to the original URL.
func (cc *CampaignController) HandleClickTracking(c *fiber.Ctx) error {
	token := c.Params("token")
	target := c.Query("url")
	if target == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing url parameter", nil)
	}

	if _, err := cc.Engine.RecordEventByToken(c.Context(), token, models.RecipientStatusClicked, time.Now()); err != nil {
		cc.Logger.Printf("click tracking for unknown token")
	}

	return c.Redirect(target, fiber.StatusFound)
}

// HandleUnsubscribe processes the one-click unsubscribe link.
func (cc *CampaignController) HandleUnsubscribe(c *fiber.Ctx) error {
	token := c.Params("token")

	if _, err := cc.Engine.RecordEventByToken(c.Context(), token, models.RecipientStatusUnsubscribed, time.Now()); err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "This unsubscribe link is no longer valid", nil)
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(`<html><body style="font-family:Arial,sans-serif;text-align:center;padding:40px">
<h2>You have been unsubscribed</h2>
<p>You will no longer receive emails from this sender.</p>
</body></html>`)
}
