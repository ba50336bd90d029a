package controller

import (
	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/utils"
)

func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var input engine.CampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	campaign, err := cc.Engine.UpdateCampaign(c.Context(), account.ID, campaignID, input)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) AddRecipient(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var input engine.AttachInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	recipient, err := cc.Engine.Attach(c.Context(), account.ID, campaignID, input)
	if err != nil {
		return engineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(recipient))
}

func (cc *CampaignController) RemoveRecipient(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := cc.Engine.Detach(c.Context(), account.ID, campaignID, input.Email); err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"removed": input.Email}))
}
