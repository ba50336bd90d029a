package engine

import (
	"context"
	"math"

	"gorm.io/gorm"

	"mailblast/models"
)

// Statistics is the derived snapshot for one campaign. It is a pure function
// of the recipient rows; the denormalized columns on the campaign are only a
// cache of the latest recompute.
type Statistics struct {
	TotalRecipients   int `json:"total_recipients"`
	TotalSent         int `json:"total_sent"`
	TotalDelivered    int `json:"total_delivered"`
	TotalOpened       int `json:"total_opened"`
	TotalClicked      int `json:"total_clicked"`
	TotalBounced      int `json:"total_bounced"`
	TotalUnsubscribed int `json:"total_unsubscribed"`

	// Percentages, 2-decimal rounding for display
	OpenRate   float64 `json:"open_rate"`   // opened / delivered
	ClickRate  float64 `json:"click_rate"`  // clicked / delivered
	BounceRate float64 `json:"bounce_rate"` // bounced / sent
}

// Recompute derives fresh statistics from the campaign's recipients in a
// single pass under a transaction, so a concurrent RecordEvent can never be
// counted in two buckets for the same recipient. The snapshot on the
// campaign row is overwritten wholesale.
func (e *Engine) Recompute(ctx context.Context, campaignID uint) (*Statistics, error) {
	mu := e.campaignLock(campaignID)
	mu.Lock()
	defer mu.Unlock()

	return e.recomputeLocked(ctx, campaignID)
}

func (e *Engine) recomputeLocked(ctx context.Context, campaignID uint) (*Statistics, error) {
	var stats Statistics

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrCampaignNotFound
			}
			return err
		}

		var recipients []models.Recipient
		if err := tx.Select("status", "sent_at", "delivered_at", "opened_at", "clicked_at").
			Where("campaign_id = ?", campaign.ID).Find(&recipients).Error; err != nil {
			return err
		}

		stats = CountStatuses(recipients)

		return tx.Model(&campaign).Updates(map[string]interface{}{
			"total_recipients":   stats.TotalRecipients,
			"total_sent":         stats.TotalSent,
			"total_delivered":    stats.TotalDelivered,
			"total_opened":       stats.TotalOpened,
			"total_clicked":      stats.TotalClicked,
			"total_bounced":      stats.TotalBounced,
			"total_unsubscribed": stats.TotalUnsubscribed,
			"open_rate":          stats.OpenRate,
			"click_rate":         stats.ClickRate,
			"bounce_rate":        stats.BounceRate,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CountStatuses folds recipient rows into totals. A recipient on the
// engagement chain counts toward every stage it passed: clicked implies
// opened, delivered and sent. Bounced and unsubscribed recipients credit
// the chain stages they reached before absorbing, decided by their stamped
// timestamps.
func CountStatuses(recipients []models.Recipient) Statistics {
	var stats Statistics
	stats.TotalRecipients = len(recipients)

	for _, r := range recipients {
		if IsTerminalRecipientStatus(r.Status) {
			if r.Status == models.RecipientStatusBounced {
				stats.TotalBounced++
			} else {
				stats.TotalUnsubscribed++
			}
			if r.SentAt != nil {
				stats.TotalSent++
			}
			if r.DeliveredAt != nil {
				stats.TotalDelivered++
			}
			if r.OpenedAt != nil {
				stats.TotalOpened++
			}
			if r.ClickedAt != nil {
				stats.TotalClicked++
			}
			continue
		}

		rank := statusRank[r.Status]
		if rank >= statusRank[models.RecipientStatusSent] {
			stats.TotalSent++
		}
		if rank >= statusRank[models.RecipientStatusDelivered] {
			stats.TotalDelivered++
		}
		if rank >= statusRank[models.RecipientStatusOpened] {
			stats.TotalOpened++
		}
		if rank >= statusRank[models.RecipientStatusClicked] {
			stats.TotalClicked++
		}
	}

	stats.OpenRate = ratePercent(stats.TotalOpened, stats.TotalDelivered)
	stats.ClickRate = ratePercent(stats.TotalClicked, stats.TotalDelivered)
	stats.BounceRate = ratePercent(stats.TotalBounced, stats.TotalSent)
	return stats
}

// Progress is a point-in-time dispatch snapshot for one campaign, read from
// the cached statistics columns.
type Progress struct {
	CampaignID uint    `json:"campaign_id"`
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Sent       int     `json:"sent"`
	Delivered  int     `json:"delivered"`
	Bounced    int     `json:"bounced"`
	Percent    float64 `json:"percent"`

	// Done reports that dispatch is no longer running.
	Done bool `json:"done"`
}

// CampaignProgress returns the dispatch progress of a campaign the account
// owns.
func (e *Engine) CampaignProgress(ctx context.Context, accountID, campaignID uint) (*Progress, error) {
	var campaign models.Campaign
	if err := e.DB.WithContext(ctx).
		Where("id = ? AND account_id = ?", campaignID, accountID).
		First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	attempted := campaign.TotalSent + campaign.TotalBounced
	percent := 0.0
	if campaign.TotalRecipients > 0 {
		percent = float64(attempted) / float64(campaign.TotalRecipients) * 100
	}

	return &Progress{
		CampaignID: campaign.ID,
		Status:     campaign.Status,
		Total:      campaign.TotalRecipients,
		Sent:       campaign.TotalSent,
		Delivered:  campaign.TotalDelivered,
		Bounced:    campaign.TotalBounced,
		Percent:    percent,
		Done:       campaign.Status != models.CampaignStatusSending,
	}, nil
}

// ratePercent returns numerator/denominator as a percentage rounded to two
// decimals, and 0 when the denominator is 0.
func ratePercent(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*10000) / 100
}
