package controller

import (
	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/models"
	"mailblast/utils"
)

// GetCampaignStats recomputes the statistics from the recipient rows before
// returning, so the caller never sees a stale snapshot.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.Engine.DB.WithContext(c.Context()).
		Where("id = ? AND account_id = ?", campaignID, account.ID).
		First(&campaign).Error; err != nil {
		return engineError(c, engine.ErrCampaignNotFound)
	}

	stats, err := cc.Engine.Recompute(c.Context(), campaign.ID)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"campaign_id": campaign.ID,
		"status":      campaign.Status,
		"stats":       stats,
	}))
}
