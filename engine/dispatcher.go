package engine

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"mailblast/models"
)

// OutboundMessage is one delivery attempt handed to the mailer.
type OutboundMessage struct {
	CampaignID       uint
	RecipientEmail   string
	RecipientName    string
	FromName         string
	FromEmail        string
	ReplyTo          string
	Subject          string
	Body             string
	UnsubscribeToken string
	TrackOpens       bool
	TrackClicks      bool
	UnsubscribeLink  bool
}

// Mailer hands a message to the delivery provider and returns the provider's
// message id.
type Mailer interface {
	Deliver(ctx context.Context, msg OutboundMessage) (string, error)
}

// RunDispatch walks a sending campaign's pending recipients in batches,
// fanning each batch out across a bounded worker pool. Between batches the
// campaign status is re-read, so a Pause or Cancel takes effect at the next
// batch boundary; deliveries already in flight finish. When no pending
// recipients remain the campaign is completed and usage recorded.
func (e *Engine) RunDispatch(ctx context.Context, campaignID uint, cost int) {
	log := e.Logger.WithField("campaign_id", campaignID)

	// Usage is charged once per authorized send, up front, so a later pause
	// cannot dodge the debit.
	if cost > 0 {
		var campaign models.Campaign
		if err := e.DB.WithContext(ctx).First(&campaign, campaignID).Error; err != nil {
			log.WithError(err).Error("dispatch aborted before usage record")
			return
		}
		e.Gate.RecordUsage(ctx, campaign.AccountID, campaignID, cost)
	}

	for {
		campaign, batch, err := e.claimBatch(ctx, campaignID)
		if err != nil {
			log.WithError(err).Error("dispatch batch claim failed")
			return
		}
		if campaign == nil {
			// No longer sending; a resume restarts dispatch later.
			log.Info("dispatch halted")
			return
		}
		if len(batch) == 0 {
			break
		}

		e.deliverBatch(ctx, campaign, batch)

		if _, err := e.Recompute(ctx, campaignID); err != nil {
			log.WithError(err).Warn("stats recompute after batch failed")
		}
	}

	if _, err := e.CompleteSend(ctx, campaignID); err != nil {
		// Already paused or completed elsewhere
		log.WithError(err).Info("dispatch finished without completing campaign")
		return
	}
	log.Info("campaign dispatch complete")
}

// claimBatch re-reads the campaign and returns the next slice of pending
// recipients. A nil campaign means the campaign left the sending state.
func (e *Engine) claimBatch(ctx context.Context, campaignID uint) (*models.Campaign, []models.Recipient, error) {
	var campaign models.Campaign
	if err := e.DB.WithContext(ctx).First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrCampaignNotFound
		}
		return nil, nil, err
	}
	if campaign.Status != models.CampaignStatusSending {
		return nil, nil, nil
	}

	var batch []models.Recipient
	if err := e.DB.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, models.RecipientStatusPending).
		Order("id").Limit(e.opts.DispatchBatchSize).Find(&batch).Error; err != nil {
		return nil, nil, err
	}
	return &campaign, batch, nil
}

func (e *Engine) deliverBatch(ctx context.Context, campaign *models.Campaign, batch []models.Recipient) {
	sem := make(chan struct{}, e.opts.DispatchConcurrency)
	var wg sync.WaitGroup

	for _, recipient := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(r models.Recipient) {
			defer wg.Done()
			defer func() { <-sem }()
			e.deliverOne(ctx, campaign, r)
		}(recipient)
	}
	wg.Wait()
}

// deliverOne attempts a single delivery and records the outcome in the
// ledger. A mailer failure marks the recipient bounced with the error kept on
// the row.
func (e *Engine) deliverOne(ctx context.Context, campaign *models.Campaign, recipient models.Recipient) {
	msg := OutboundMessage{
		CampaignID:       campaign.ID,
		RecipientEmail:   recipient.Email,
		RecipientName:    recipient.Name,
		FromName:         campaign.FromName,
		FromEmail:        campaign.FromEmail,
		ReplyTo:          campaign.ReplyTo,
		Subject:          campaign.Subject,
		Body:             campaign.Body,
		UnsubscribeToken: recipient.UnsubscribeToken,
		TrackOpens:       campaign.TrackOpens,
		TrackClicks:      campaign.TrackClicks,
		UnsubscribeLink:  campaign.UnsubscribeLink,
	}

	messageID, err := e.Mailer.Deliver(ctx, msg)

	log := e.Logger.WithFields(map[string]interface{}{
		"campaign_id": campaign.ID,
		"email":       recipient.Email,
	})

	if err != nil {
		log.WithError(err).Warn("delivery failed")
		if dbErr := e.recordDeliveryFailure(ctx, campaign.ID, recipient.Email, err.Error()); dbErr != nil {
			log.WithError(dbErr).Error("failed to record delivery failure")
		}
		return
	}

	if _, dbErr := e.RecordEvent(ctx, campaign.ID, recipient.Email, models.RecipientStatusSent, time.Now()); dbErr != nil {
		log.WithError(dbErr).Error("failed to record send")
		return
	}
	if messageID != "" {
		if dbErr := e.DB.WithContext(ctx).Model(&models.Recipient{}).
			Where("campaign_id = ? AND email = ?", campaign.ID, recipient.Email).
			Update("message_id", messageID).Error; dbErr != nil {
			log.WithError(dbErr).Warn("failed to store message id")
		}
	}
}

func (e *Engine) recordDeliveryFailure(ctx context.Context, campaignID uint, email, reason string) error {
	if _, err := e.RecordEvent(ctx, campaignID, email, models.RecipientStatusBounced, time.Now()); err != nil {
		return err
	}
	return e.DB.WithContext(ctx).Model(&models.Recipient{}).
		Where("campaign_id = ? AND email = ?", campaignID, email).
		Update("last_error", reason).Error
}

// CompleteIfQuiet completes a sending campaign when every recipient has
// reached a terminal or post-send state, or when the campaign has been
// sending longer than the dispatch timeout. Returns true when a completion
// happened. Called periodically by the completion worker to sweep campaigns
// whose dispatcher died mid-run.
func (e *Engine) CompleteIfQuiet(ctx context.Context, campaignID uint) (bool, error) {
	var campaign models.Campaign
	if err := e.DB.WithContext(ctx).First(&campaign, campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, ErrCampaignNotFound
		}
		return false, err
	}
	if campaign.Status != models.CampaignStatusSending {
		return false, nil
	}

	var pending int64
	if err := e.DB.WithContext(ctx).Model(&models.Recipient{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, models.RecipientStatusPending).
		Count(&pending).Error; err != nil {
		return false, err
	}

	timedOut := campaign.SentAt != nil && time.Since(*campaign.SentAt) > e.opts.DispatchTimeout
	if pending > 0 && !timedOut {
		return false, nil
	}

	if _, err := e.CompleteSend(ctx, campaign.ID); err != nil {
		return false, err
	}
	return true, nil
}

// SendingCampaignIDs lists campaigns currently in the sending state, for the
// completion worker's sweep.
func (e *Engine) SendingCampaignIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := e.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("status = ?", models.CampaignStatusSending).
		Pluck("id", &ids).Error
	return ids, err
}

// DueScheduledCampaigns lists scheduled campaigns whose scheduled_at has
// passed, for the scheduler worker.
func (e *Engine) DueScheduledCampaigns(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := e.DB.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
			models.CampaignStatusScheduled, time.Now()).
		Find(&campaigns).Error
	return campaigns, err
}
