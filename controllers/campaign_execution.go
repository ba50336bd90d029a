package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"mailblast/utils"
)

func (cc *CampaignController) ScheduleCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var input struct {
		ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	campaign, err := cc.Engine.Schedule(c.Context(), account.ID, campaignID, input.ScheduledAt)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d scheduled for %s", campaign.ID, input.ScheduledAt)
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) SendCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Engine.Send(c.Context(), account.ID, campaignID)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d dispatch started", campaign.ID)
	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Engine.Pause(c.Context(), account.ID, campaignID)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d paused", campaign.ID)
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) ResumeCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Engine.Resume(c.Context(), account.ID, campaignID)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d resumed", campaign.ID)
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) CancelCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Engine.Cancel(c.Context(), account.ID, campaignID)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d cancelled", campaign.ID)
	return c.JSON(utils.SuccessResponse(campaign))
}
