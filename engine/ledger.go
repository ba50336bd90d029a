package engine

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mailblast/models"
)

// AttachInput identifies a delivery target to add to a campaign. Either a
// contact reference or an ad hoc email address.
type AttachInput struct {
	ContactID *uint  `json:"contact_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Attach adds a recipient to a campaign still in draft or scheduled.
// Attaching the same email twice is a no-op returning the existing row.
func (e *Engine) Attach(ctx context.Context, accountID, campaignID uint, input AttachInput) (*models.Recipient, error) {
	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	var recipient models.Recipient

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.Where("id = ? AND account_id = ?", campaignID, accountID).First(&campaign).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}
		if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
			return fmt.Errorf("%w: cannot attach recipients while %s", ErrInvalidStateTransition, campaign.Status)
		}

		email := input.Email
		name := input.Name
		if input.ContactID != nil {
			var contact models.Contact
			if err := tx.Where("id = ? AND account_id = ?", *input.ContactID, accountID).First(&contact).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrContactNotFound
				}
				return err
			}
			email = contact.Email
			if name == "" {
				name = contact.Name
			}
		}

		email = normalizeEmail(email)
		if email == "" {
			return fmt.Errorf("%w: email", ErrMissingField)
		}

		// Idempotent on (campaign, email)
		err := tx.Where("campaign_id = ? AND email = ?", campaign.ID, email).First(&recipient).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		recipient = models.Recipient{
			CampaignID:       campaign.ID,
			ContactID:        input.ContactID,
			Email:            email,
			Name:             name,
			Status:           models.RecipientStatusPending,
			UnsubscribeToken: NewToken(),
		}
		return tx.Create(&recipient).Error
	})
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}

// Detach removes a recipient from a campaign that has not begun sending.
func (e *Engine) Detach(ctx context.Context, accountID, campaignID uint, email string) error {
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
		if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
			return fmt.Errorf("%w: cannot detach recipients while %s", ErrInvalidStateTransition, campaign.Status)
		}

		result := tx.Unscoped().
			Where("campaign_id = ? AND email = ?", campaign.ID, normalizeEmail(email)).
			Delete(&models.Recipient{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUnknownRecipient
		}
		return nil
	})
}

// RecordEvent applies a delivery event to a recipient. Transitions are
// forward-only along pending < sent < delivered < opened < clicked, with
// bounced and unsubscribed absorbing from any non-terminal status. An equal
// or earlier event is a successful no-op, so at-least-once webhook delivery
// and out-of-order arrival converge on the same final state.
func (e *Engine) RecordEvent(ctx context.Context, campaignID uint, email, status string, occurredAt time.Time) (*models.Recipient, error) {
	if !IsRecipientStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMissingField, status)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	var recipient models.Recipient

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ? AND email = ?", campaignID, normalizeEmail(email)).
			First(&recipient).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrUnknownRecipient
			}
			return err
		}
		return e.applyEvent(tx, &recipient, status, occurredAt)
	})
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}

// applyEvent mutates the recipient row inside tx, including the
// write-through to the backing contact on bounce and unsubscribe.
func (e *Engine) applyEvent(tx *gorm.DB, recipient *models.Recipient, status string, occurredAt time.Time) error {
	if !statusSupersedes(recipient.Status, status) {
		return nil
	}

	recipient.Status = status
	stampStatus(recipient, status, occurredAt)

	switch status {
	case models.RecipientStatusBounced:
		if err := e.markContactBounced(tx, recipient); err != nil {
			return err
		}
	case models.RecipientStatusUnsubscribed:
		// Single-use token
		recipient.UnsubscribeToken = ""
		if err := e.markContactUnsubscribed(tx, recipient); err != nil {
			return err
		}
	}

	return tx.Save(recipient).Error
}

func stampStatus(r *models.Recipient, status string, at time.Time) {
	switch status {
	case models.RecipientStatusSent:
		if r.SentAt == nil {
			r.SentAt = &at
		}
	case models.RecipientStatusDelivered:
		if r.DeliveredAt == nil {
			r.DeliveredAt = &at
		}
	case models.RecipientStatusOpened:
		if r.OpenedAt == nil {
			r.OpenedAt = &at
		}
	case models.RecipientStatusClicked:
		if r.ClickedAt == nil {
			r.ClickedAt = &at
		}
	case models.RecipientStatusBounced:
		if r.BouncedAt == nil {
			r.BouncedAt = &at
		}
	case models.RecipientStatusUnsubscribed:
		if r.UnsubscribedAt == nil {
			r.UnsubscribedAt = &at
		}
	}
}

func (e *Engine) markContactBounced(tx *gorm.DB, recipient *models.Recipient) error {
	if recipient.ContactID == nil {
		return nil
	}
	return tx.Model(&models.Contact{}).Where("id = ?", *recipient.ContactID).
		Updates(map[string]interface{}{
			"status":       models.ContactStatusBounced,
			"bounce_count": gorm.Expr("bounce_count + 1"),
		}).Error
}

func (e *Engine) markContactUnsubscribed(tx *gorm.DB, recipient *models.Recipient) error {
	if recipient.ContactID == nil {
		return nil
	}
	return tx.Model(&models.Contact{}).Where("id = ?", *recipient.ContactID).
		Update("status", models.ContactStatusUnsubscribed).Error
}

// RecipientByToken resolves a recipient from its unsubscribe/tracking token.
func (e *Engine) RecipientByToken(ctx context.Context, token string) (*models.Recipient, error) {
	if token == "" {
		return nil, ErrUnknownRecipient
	}
	var recipient models.Recipient
	if err := e.DB.WithContext(ctx).Where("unsubscribe_token = ?", token).First(&recipient).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUnknownRecipient
		}
		return nil, err
	}
	return &recipient, nil
}

// RecordEventByToken applies a delivery event located by token rather than
// (campaign, email); used by the pixel, click and unsubscribe endpoints.
func (e *Engine) RecordEventByToken(ctx context.Context, token, status string, occurredAt time.Time) (*models.Recipient, error) {
	recipient, err := e.RecipientByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.RecordEvent(ctx, recipient.CampaignID, recipient.Email, status, occurredAt)
}

// RecipientFilter narrows ListRecipients.
type RecipientFilter struct {
	Status string
	Page   int
	Limit  int
}

// ListRecipients returns a page of a campaign's recipients.
func (e *Engine) ListRecipients(ctx context.Context, accountID, campaignID uint, filter RecipientFilter) ([]models.Recipient, int64, error) {
	var campaign models.Campaign
	if err := e.DB.WithContext(ctx).Where("id = ? AND account_id = ?", campaignID, accountID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, ErrCampaignNotFound
		}
		return nil, 0, err
	}

	query := e.DB.WithContext(ctx).Model(&models.Recipient{}).Where("campaign_id = ?", campaign.ID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var recipients []models.Recipient
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&recipients).Error; err != nil {
		return nil, 0, err
	}
	return recipients, total, nil
}
