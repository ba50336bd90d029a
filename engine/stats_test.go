package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailblast/models"
)

func ts() *time.Time {
	t := time.Now()
	return &t
}

func TestCountStatusesEmpty(t *testing.T) {
	stats := CountStatuses(nil)
	assert.Zero(t, stats.TotalRecipients)
	assert.Zero(t, stats.OpenRate)
	assert.Zero(t, stats.ClickRate)
	assert.Zero(t, stats.BounceRate)
}

func TestCountStatusesChainImplication(t *testing.T) {
	stats := CountStatuses([]models.Recipient{
		{Status: models.RecipientStatusClicked},
	})
	assert.Equal(t, 1, stats.TotalSent)
	assert.Equal(t, 1, stats.TotalDelivered)
	assert.Equal(t, 1, stats.TotalOpened)
	assert.Equal(t, 1, stats.TotalClicked)
}

func TestCountStatusesAbsorbedKeepHistory(t *testing.T) {
	// Delivered then bounced: still counts as sent and delivered.
	stats := CountStatuses([]models.Recipient{
		{Status: models.RecipientStatusBounced, SentAt: ts(), DeliveredAt: ts()},
		{Status: models.RecipientStatusUnsubscribed, SentAt: ts(), DeliveredAt: ts(), OpenedAt: ts()},
		{Status: models.RecipientStatusBounced}, // bounced before any send
	})
	assert.Equal(t, 3, stats.TotalRecipients)
	assert.Equal(t, 2, stats.TotalSent)
	assert.Equal(t, 2, stats.TotalDelivered)
	assert.Equal(t, 1, stats.TotalOpened)
	assert.Equal(t, 2, stats.TotalBounced)
	assert.Equal(t, 1, stats.TotalUnsubscribed)
}

func TestRates(t *testing.T) {
	recipients := []models.Recipient{
		{Status: models.RecipientStatusClicked},
		{Status: models.RecipientStatusOpened},
		{Status: models.RecipientStatusDelivered},
		{Status: models.RecipientStatusSent},
		{Status: models.RecipientStatusPending},
		{Status: models.RecipientStatusBounced, SentAt: ts()},
	}
	stats := CountStatuses(recipients)

	assert.Equal(t, 5, stats.TotalSent)
	assert.Equal(t, 3, stats.TotalDelivered)
	assert.Equal(t, 2, stats.TotalOpened)
	assert.Equal(t, 1, stats.TotalClicked)
	assert.Equal(t, 1, stats.TotalBounced)

	assert.InDelta(t, 66.67, stats.OpenRate, 0.001)  // 2/3
	assert.InDelta(t, 33.33, stats.ClickRate, 0.001) // 1/3
	assert.InDelta(t, 20.0, stats.BounceRate, 0.001) // 1/5
}

func TestRatePercentZeroDenominator(t *testing.T) {
	assert.Zero(t, ratePercent(5, 0))
	assert.Zero(t, ratePercent(0, 0))
	assert.Equal(t, 50.0, ratePercent(1, 2))
	assert.Equal(t, 33.33, ratePercent(1, 3))
}

func TestRecomputeOverwritesSnapshot(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com", "b@example.com")

	// Poison the snapshot columns; recompute must not trust them.
	require.NoError(t, e.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{"total_sent": 99, "open_rate": 99.0}).Error)

	ctx := context.Background()
	_, err := e.RecordEvent(ctx, campaign.ID, "a@example.com", models.RecipientStatusOpened, time.Now())
	require.NoError(t, err)
	_, err = e.RecordEvent(ctx, campaign.ID, "b@example.com", models.RecipientStatusSent, time.Now())
	require.NoError(t, err)

	stats, err := e.Recompute(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecipients)
	assert.Equal(t, 2, stats.TotalSent)
	assert.Equal(t, 1, stats.TotalDelivered)
	assert.Equal(t, 1, stats.TotalOpened)
	assert.InDelta(t, 100.0, stats.OpenRate, 0.001)

	var refreshed models.Campaign
	require.NoError(t, e.DB.First(&refreshed, campaign.ID).Error)
	assert.Equal(t, 2, refreshed.TotalSent)
	assert.InDelta(t, 100.0, refreshed.OpenRate, 0.001)
}

func TestRecomputeIsDeterministic(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	_, err := e.RecordEvent(context.Background(), campaign.ID, "a@example.com", models.RecipientStatusClicked, time.Now())
	require.NoError(t, err)

	first, err := e.Recompute(context.Background(), campaign.ID)
	require.NoError(t, err)
	second, err := e.Recompute(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCampaignProgressScopedToAccount(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	owner := createTestAccount(t, e.DB)
	other := models.Account{Email: "other@example.com", Name: "Other", IsActive: true}
	require.NoError(t, e.DB.Create(&other).Error)

	ctx := context.Background()
	campaign := createDraftCampaign(t, e, owner.ID)
	attachEmails(t, e, owner.ID, campaign.ID, "a@example.com", "b@example.com")

	_, err := e.RecordEvent(ctx, campaign.ID, "a@example.com", models.RecipientStatusSent, time.Now())
	require.NoError(t, err)
	_, err = e.Recompute(ctx, campaign.ID)
	require.NoError(t, err)

	progress, err := e.CampaignProgress(ctx, owner.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, progress.CampaignID)
	assert.Equal(t, 2, progress.Total)
	assert.Equal(t, 1, progress.Sent)
	assert.InDelta(t, 50.0, progress.Percent, 0.001)
	assert.True(t, progress.Done) // still draft, dispatch not running

	// Another account cannot read it, even knowing the id.
	_, err = e.CampaignProgress(ctx, other.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}
