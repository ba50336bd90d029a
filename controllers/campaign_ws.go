package controller

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"

	"mailblast/models"
	"mailblast/utils"
)

// HandleCampaignProgressWS streams dispatch progress for one of the
// authenticated account's campaigns over a websocket until the campaign
// leaves the sending state or the client disconnects. The account is
// captured from the upgrading request by the auth middleware.
func (cc *CampaignController) HandleCampaignProgressWS(conn *websocket.Conn) {
	defer conn.Close()

	account, ok := conn.Locals("account").(*models.Account)
	if !ok {
		conn.WriteJSON(map[string]string{"error": "unauthorized"})
		return
	}
	campaignID := utils.ParseUint(conn.Params("id"))

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		progress, err := cc.Engine.CampaignProgress(context.Background(), account.ID, campaignID)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": "campaign not found"})
			return
		}

		if err := conn.WriteJSON(progress); err != nil {
			return
		}
		if progress.Done {
			return
		}

		<-ticker.C
	}
}
