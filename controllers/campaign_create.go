package controller

import (
	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/utils"
)

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)

	var input engine.CampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	campaign, err := cc.Engine.CreateCampaign(c.Context(), account.ID, input)
	if err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d created for account %d", campaign.ID, account.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}
