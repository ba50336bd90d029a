package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailblast/models"
)

func TestCreateCampaignRequiredFields(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)

	tests := []struct {
		name  string
		input CampaignInput
	}{
		{"missing name", CampaignInput{Subject: "s", Body: "b"}},
		{"missing subject", CampaignInput{Name: "n", Body: "b"}},
		{"missing body", CampaignInput{Name: "n", Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateCampaign(context.Background(), account.ID, tt.input)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestCreateCampaignDefaults(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)

	campaign := createDraftCampaign(t, e, account.ID)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
	assert.True(t, campaign.TrackOpens)
	assert.True(t, campaign.TrackClicks)
	assert.True(t, campaign.UnsubscribeLink)
}

func TestScheduleRejectsPast(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	_, err := e.Schedule(context.Background(), account.ID, campaign.ID, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Equal(t, models.CampaignStatusDraft, campaignStatus(t, e, campaign.ID))
}

func TestScheduleThenCancel(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	scheduled, err := e.Schedule(context.Background(), account.ID, campaign.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.ScheduledAt)

	cancelled, err := e.Cancel(context.Background(), account.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCancelled, cancelled.Status)

	// Terminal: no edges out
	_, err = e.Send(context.Background(), account.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestSendRequiresRecipients(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	_, err := e.Send(context.Background(), account.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrEmptyRecipientList)
	assert.Equal(t, models.CampaignStatusDraft, campaignStatus(t, e, campaign.ID))
}

func TestSendDeniedByGate(t *testing.T) {
	e := newTestEngine(t, denyGate("insufficient_credits"), nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	_, err := e.Send(context.Background(), account.ID, campaign.ID)

	var quotaErr *QuotaError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, "insufficient_credits", quotaErr.Reason)
	assert.Equal(t, models.CampaignStatusDraft, campaignStatus(t, e, campaign.ID))
}

func TestSendDispatchesAndCompletes(t *testing.T) {
	gate := approveGate(3)
	mailer := newStubMailer()
	e := newTestEngine(t, gate, mailer)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com", "b@example.com", "c@example.com")

	sent, err := e.Send(context.Background(), account.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, sent.Status)
	require.NotNil(t, sent.SentAt)

	require.Eventually(t, func() bool {
		return campaignStatus(t, e, campaign.ID) == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, mailer.deliveredCount())
	assert.Equal(t, []int{3}, gate.recordedUsage())

	var refreshed models.Campaign
	require.NoError(t, e.DB.First(&refreshed, campaign.ID).Error)
	require.NotNil(t, refreshed.CompletedAt)
	assert.Equal(t, 3, refreshed.TotalSent)
	assert.Equal(t, 0, refreshed.TotalBounced)
}

func TestSendMarksFailedDeliveriesBounced(t *testing.T) {
	mailer := newStubMailer("bad@example.com")
	e := newTestEngine(t, nil, mailer)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "ok@example.com", "bad@example.com")

	_, err := e.Send(context.Background(), account.ID, campaign.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return campaignStatus(t, e, campaign.ID) == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)

	var bounced models.Recipient
	require.NoError(t, e.DB.Where("campaign_id = ? AND email = ?", campaign.ID, "bad@example.com").
		First(&bounced).Error)
	assert.Equal(t, models.RecipientStatusBounced, bounced.Status)
	assert.Contains(t, bounced.LastError, "mailbox unavailable")
	require.NotNil(t, bounced.BouncedAt)

	var ok models.Recipient
	require.NoError(t, e.DB.Where("campaign_id = ? AND email = ?", campaign.ID, "ok@example.com").
		First(&ok).Error)
	assert.Equal(t, models.RecipientStatusSent, ok.Status)
	assert.NotEmpty(t, ok.MessageID)
}

func TestPauseHaltsDispatchAndResumeFinishes(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	// Drive the state machine directly, without the background dispatcher.
	require.NoError(t, e.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("status", models.CampaignStatusSending).Error)

	paused, err := e.Pause(context.Background(), account.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, paused.Status)

	// claimBatch refuses to hand out work for a paused campaign
	c, batch, err := e.claimBatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, batch)

	_, err = e.Resume(context.Background(), account.ID, campaign.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return campaignStatus(t, e, campaign.ID) == models.CampaignStatusSent
	}, 5*time.Second, 20*time.Millisecond)
}

func TestTransitionScopedToAccount(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	owner := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, owner.ID)

	intruder := models.Account{Email: "other@example.com", Name: "Other", IsActive: true}
	require.NoError(t, e.DB.Create(&intruder).Error)

	_, err := e.Cancel(context.Background(), intruder.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCompleteIfQuiet(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	sentAt := time.Now()
	require.NoError(t, e.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{
			"status":  models.CampaignStatusSending,
			"sent_at": &sentAt,
		}).Error)

	// Still pending and within the timeout: nothing happens.
	done, err := e.CompleteIfQuiet(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = e.RecordEvent(context.Background(), campaign.ID, "a@example.com", models.RecipientStatusSent, time.Now())
	require.NoError(t, err)

	done, err = e.CompleteIfQuiet(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, models.CampaignStatusSent, campaignStatus(t, e, campaign.ID))
}

func TestDeleteCampaignCascades(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com", "b@example.com")

	require.NoError(t, e.DeleteCampaign(context.Background(), account.ID, campaign.ID))

	var recipients int64
	require.NoError(t, e.DB.Model(&models.Recipient{}).Where("campaign_id = ?", campaign.ID).
		Count(&recipients).Error)
	assert.Zero(t, recipients)

	err := e.DeleteCampaign(context.Background(), account.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestListCampaignsFilters(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	other := models.Account{Email: "other@example.com", Name: "Other", IsActive: true}
	require.NoError(t, e.DB.Create(&other).Error)
	ctx := context.Background()

	launch, err := e.CreateCampaign(ctx, account.ID, CampaignInput{
		Name: "Spring Launch", Subject: "We are live", Body: "b",
	})
	require.NoError(t, err)
	_, err = e.CreateCampaign(ctx, account.ID, CampaignInput{
		Name: "Weekly Digest", Subject: "Spring picks inside", Body: "b",
	})
	require.NoError(t, err)
	_, err = e.CreateCampaign(ctx, other.ID, CampaignInput{
		Name: "Spring Launch", Subject: "s", Body: "b",
	})
	require.NoError(t, err)

	_, err = e.Schedule(ctx, account.ID, launch.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	all, total, err := e.ListCampaigns(ctx, account.ID, CampaignFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	scheduled, _, err := e.ListCampaigns(ctx, account.ID, CampaignFilter{Status: models.CampaignStatusScheduled})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, launch.ID, scheduled[0].ID)

	// Search is case-insensitive and covers both name and subject.
	found, total, err := e.ListCampaigns(ctx, account.ID, CampaignFilter{Search: "SPRING"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, found, 2)

	byName, _, err := e.ListCampaigns(ctx, account.ID, CampaignFilter{Search: "digest"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Weekly Digest", byName[0].Name)
}
