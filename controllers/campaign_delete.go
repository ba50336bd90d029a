package controller

import (
	"github.com/gofiber/fiber/v2"

	"mailblast/utils"
)

func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	account := currentAccount(c)
	campaignID := utils.ParseUint(c.Params("id"))

	if err := cc.Engine.DeleteCampaign(c.Context(), account.ID, campaignID); err != nil {
		return engineError(c, err)
	}

	cc.Logger.Printf("campaign %d deleted by account %d", campaignID, account.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": campaignID}))
}
