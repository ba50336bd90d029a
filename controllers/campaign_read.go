package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/models"
	"mailblast/utils"
)

func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	account := currentAccount(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	campaigns, total, err := cc.Engine.ListCampaigns(c.Context(), account.ID, engine.CampaignFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  campaigns,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.Engine.DB.WithContext(c.Context()).
		Where("id = ? AND account_id = ?", campaignID, account.ID).
		First(&campaign).Error; err != nil {
		return engineError(c, engine.ErrCampaignNotFound)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) GetCampaignRecipients(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	recipients, total, err := cc.Engine.ListRecipients(c.Context(), account.ID, campaignID, engine.RecipientFilter{
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  recipients,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}
