package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"mailblast/models"
)

// CampaignInput carries the caller-supplied fields for campaign creation.
// Content composition is external; the engine stores whatever it is given.
type CampaignInput struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	PreviewText string `json:"preview_text"`
	Type        string `json:"type"`
	Style       string `json:"style"`

	FromName        string `json:"from_name"`
	FromEmail       string `json:"from_email"`
	ReplyTo         string `json:"reply_to"`
	TrackOpens      *bool  `json:"track_opens"`
	TrackClicks     *bool  `json:"track_clicks"`
	UnsubscribeLink *bool  `json:"unsubscribe_link"`

	GeneratedByAI bool   `json:"generated_by_ai"`
	AIPrompt      string `json:"ai_prompt"`
	AIModel       string `json:"ai_model"`
}

// CreateCampaign creates a draft campaign. Name, subject and body are
// required.
func (e *Engine) CreateCampaign(ctx context.Context, accountID uint, input CampaignInput) (*models.Campaign, error) {
	for field, value := range map[string]string{
		"name":    input.Name,
		"subject": input.Subject,
		"body":    input.Body,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	campaign := models.Campaign{
		AccountID:       accountID,
		Name:            input.Name,
		Subject:         input.Subject,
		Body:            input.Body,
		PreviewText:     input.PreviewText,
		Type:            input.Type,
		Style:           input.Style,
		Status:          models.CampaignStatusDraft,
		FromName:        input.FromName,
		FromEmail:       input.FromEmail,
		ReplyTo:         input.ReplyTo,
		TrackOpens:      boolOrDefault(input.TrackOpens, true),
		TrackClicks:     boolOrDefault(input.TrackClicks, true),
		UnsubscribeLink: boolOrDefault(input.UnsubscribeLink, true),
		GeneratedByAI:   input.GeneratedByAI,
		AIPrompt:        input.AIPrompt,
		AIModel:         input.AIModel,
	}

	if err := e.DB.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// CampaignFilter narrows ListCampaigns.
type CampaignFilter struct {
	Status string
	Search string // matches name or subject
	Page   int
	Limit  int
}

// ListCampaigns returns a filtered page of the account's campaigns, newest
// first.
func (e *Engine) ListCampaigns(ctx context.Context, accountID uint, filter CampaignFilter) ([]models.Campaign, int64, error) {
	query := e.DB.WithContext(ctx).Model(&models.Campaign{}).Where("account_id = ?", accountID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(subject) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var campaigns []models.Campaign
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// UpdateCampaign edits content and settings of a campaign that has not been
// queued for delivery yet. Empty input fields keep their current value.
func (e *Engine) UpdateCampaign(ctx context.Context, accountID, campaignID uint, input CampaignInput) (*models.Campaign, error) {
	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	var campaign models.Campaign

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND account_id = ?", campaignID, accountID).First(&campaign).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}
		if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
			return fmt.Errorf("%w: cannot edit while %s", ErrInvalidStateTransition, campaign.Status)
		}

		if input.Name != "" {
			campaign.Name = input.Name
		}
		if input.Subject != "" {
			campaign.Subject = input.Subject
		}
		if input.Body != "" {
			campaign.Body = input.Body
		}
		if input.PreviewText != "" {
			campaign.PreviewText = input.PreviewText
		}
		if input.FromName != "" {
			campaign.FromName = input.FromName
		}
		if input.FromEmail != "" {
			campaign.FromEmail = input.FromEmail
		}
		if input.ReplyTo != "" {
			campaign.ReplyTo = input.ReplyTo
		}
		campaign.TrackOpens = boolOrDefault(input.TrackOpens, campaign.TrackOpens)
		campaign.TrackClicks = boolOrDefault(input.TrackClicks, campaign.TrackClicks)
		campaign.UnsubscribeLink = boolOrDefault(input.UnsubscribeLink, campaign.UnsubscribeLink)

		return tx.Save(&campaign).Error
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// Schedule moves a draft campaign to scheduled at a future timestamp.
func (e *Engine) Schedule(ctx context.Context, accountID, campaignID uint, at time.Time) (*models.Campaign, error) {
	if !at.After(time.Now()) {
		return nil, ErrInvalidSchedule
	}

	return e.transition(ctx, accountID, campaignID, eventSchedule, func(tx *gorm.DB, c *models.Campaign) error {
		c.ScheduledAt = &at
		return nil
	})
}

// Send moves a draft or scheduled campaign to sending after passing the
// guards: at least one recipient attached, and gate approval. On success the
// dispatch of per-recipient delivery attempts runs asynchronously and Send
// returns promptly.
func (e *Engine) Send(ctx context.Context, accountID, campaignID uint) (*models.Campaign, error) {
	var cost int

	campaign, err := e.transition(ctx, accountID, campaignID, eventSend, func(tx *gorm.DB, c *models.Campaign) error {
		var recipients int64
		if err := tx.Model(&models.Recipient{}).Where("campaign_id = ?", c.ID).Count(&recipients).Error; err != nil {
			return err
		}
		if recipients == 0 {
			return ErrEmptyRecipientList
		}

		decision, err := e.Gate.Authorize(ctx, accountID, int(recipients))
		if err != nil {
			return err
		}
		if !decision.Approved {
			return &QuotaError{Reason: decision.Reason}
		}
		cost = decision.Cost

		now := time.Now()
		c.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	go e.RunDispatch(context.Background(), campaign.ID, cost)
	return campaign, nil
}

// Pause halts dispatch of not-yet-attempted recipients. Deliveries already
// handed to the mailer are not cancelled.
func (e *Engine) Pause(ctx context.Context, accountID, campaignID uint) (*models.Campaign, error) {
	return e.transition(ctx, accountID, campaignID, eventPause, nil)
}

// Resume restarts dispatch over recipients still pending.
func (e *Engine) Resume(ctx context.Context, accountID, campaignID uint) (*models.Campaign, error) {
	campaign, err := e.transition(ctx, accountID, campaignID, eventResume, nil)
	if err != nil {
		return nil, err
	}

	go e.RunDispatch(context.Background(), campaign.ID, 0)
	return campaign, nil
}

// Cancel terminates a campaign before any dispatch has begun. A sending
// campaign must be paused instead, so in-flight deliveries are never
// orphaned.
func (e *Engine) Cancel(ctx context.Context, accountID, campaignID uint) (*models.Campaign, error) {
	return e.transition(ctx, accountID, campaignID, eventCancel, nil)
}

// CompleteSend moves a sending campaign to sent, stamps completed_at and
// runs a final statistics recompute. Called by the completion worker once
// every recipient is terminal or the dispatch timeout elapses.
func (e *Engine) CompleteSend(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	var campaign models.Campaign

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}
		if !canTransition(eventComplete, campaign.Status) {
			return fmt.Errorf("%w: cannot complete from %s", ErrInvalidStateTransition, campaign.Status)
		}

		now := time.Now()
		campaign.Status = targetState[eventComplete]
		campaign.CompletedAt = &now
		return tx.Save(&campaign).Error
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.recomputeLocked(ctx, campaign.ID); err != nil {
		e.Logger.WithError(err).WithField("campaign_id", campaign.ID).
			Error("final stats recompute failed")
	}
	return &campaign, nil
}

// transition applies a lifecycle event under the per-campaign lock. The
// mutate callback runs inside the transaction after the edge check; a failed
// guard leaves the campaign untouched.
func (e *Engine) transition(ctx context.Context, accountID, campaignID uint, event string,
	mutate func(tx *gorm.DB, c *models.Campaign) error) (*models.Campaign, error) {

	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	var campaign models.Campaign

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND account_id = ?", campaignID, accountID).First(&campaign).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}

		if !canTransition(event, campaign.Status) {
			return fmt.Errorf("%w: %s from %s", ErrInvalidStateTransition, event, campaign.Status)
		}

		if mutate != nil {
			if err := mutate(tx, &campaign); err != nil {
				return err
			}
		}

		campaign.Status = targetState[event]
		return tx.Save(&campaign).Error
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// DeleteCampaign removes a campaign and, by composition, its recipients.
func (e *Engine) DeleteCampaign(ctx context.Context, accountID, campaignID uint) error {
	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.Where("id = ? AND account_id = ?", campaignID, accountID).First(&campaign).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}

		if err := tx.Unscoped().Where("campaign_id = ?", campaign.ID).Delete(&models.Recipient{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&campaign).Error
	})
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
