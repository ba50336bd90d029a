package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailblast/models"
)

func TestAttachIsIdempotent(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	first, err := e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{Email: "A@Example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", first.Email)
	assert.Equal(t, models.RecipientStatusPending, first.Status)
	assert.NotEmpty(t, first.UnsubscribeToken)

	second, err := e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, e.DB.Model(&models.Recipient{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAttachFromContact(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	contact, err := e.CreateContact(context.Background(), account.ID, ContactInput{
		Name: "Grace", Email: "grace@example.com",
	})
	require.NoError(t, err)

	recipient, err := e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{ContactID: &contact.ID})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", recipient.Email)
	assert.Equal(t, "Grace", recipient.Name)
	require.NotNil(t, recipient.ContactID)
	assert.Equal(t, contact.ID, *recipient.ContactID)
}

func TestAttachRejectedOnceSending(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	require.NoError(t, e.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("status", models.CampaignStatusSending).Error)

	_, err := e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{Email: "late@example.com"})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestDetach(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	require.NoError(t, e.Detach(context.Background(), account.ID, campaign.ID, "A@example.com"))

	err := e.Detach(context.Background(), account.ID, campaign.ID, "a@example.com")
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}

func TestRecordEventForwardOnly(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com")

	ctx := context.Background()
	now := time.Now()

	r, err := e.RecordEvent(ctx, campaign.ID, "a@example.com", models.RecipientStatusClicked, now)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusClicked, r.Status)
	require.NotNil(t, r.ClickedAt)

	// A late "opened" arriving after "clicked" must not regress the status.
	r, err = e.RecordEvent(ctx, campaign.ID, "a@example.com", models.RecipientStatusOpened, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusClicked, r.Status)

	// Replays are successful no-ops.
	r, err = e.RecordEvent(ctx, campaign.ID, "a@example.com", models.RecipientStatusClicked, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusClicked, r.Status)
}

func TestRecordEventUnknownRecipient(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	_, err := e.RecordEvent(context.Background(), campaign.ID, "ghost@example.com", models.RecipientStatusSent, time.Now())
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}

func TestRecordEventRejectsUnknownStatus(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, err := e.RecordEvent(context.Background(), 1, "a@example.com", "vanished", time.Now())
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestBounceAbsorbsAndWritesThroughToContact(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	contact, err := e.CreateContact(context.Background(), account.ID, ContactInput{
		Name: "Bob", Email: "bob@example.com",
	})
	require.NoError(t, err)
	_, err = e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{ContactID: &contact.ID})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.RecordEvent(ctx, campaign.ID, "bob@example.com", models.RecipientStatusDelivered, time.Now())
	require.NoError(t, err)

	r, err := e.RecordEvent(ctx, campaign.ID, "bob@example.com", models.RecipientStatusBounced, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusBounced, r.Status)
	require.NotNil(t, r.DeliveredAt) // chain history survives the absorb

	// Later engagement events bounce off the terminal state.
	r, err = e.RecordEvent(ctx, campaign.ID, "bob@example.com", models.RecipientStatusClicked, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusBounced, r.Status)
	assert.Nil(t, r.ClickedAt)

	var refreshed models.Contact
	require.NoError(t, e.DB.First(&refreshed, contact.ID).Error)
	assert.Equal(t, models.ContactStatusBounced, refreshed.Status)
	assert.Equal(t, 1, refreshed.BounceCount)
}

func TestUnsubscribeConsumesToken(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)

	contact, err := e.CreateContact(context.Background(), account.ID, ContactInput{
		Name: "Eve", Email: "eve@example.com",
	})
	require.NoError(t, err)
	recipient, err := e.Attach(context.Background(), account.ID, campaign.ID, AttachInput{ContactID: &contact.ID})
	require.NoError(t, err)
	token := recipient.UnsubscribeToken
	require.NotEmpty(t, token)

	r, err := e.RecordEventByToken(context.Background(), token, models.RecipientStatusUnsubscribed, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusUnsubscribed, r.Status)
	assert.Empty(t, r.UnsubscribeToken)

	// Token is single-use
	_, err = e.RecipientByToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnknownRecipient)

	var refreshed models.Contact
	require.NoError(t, e.DB.First(&refreshed, contact.ID).Error)
	assert.Equal(t, models.ContactStatusUnsubscribed, refreshed.Status)
}

func TestListRecipients(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	account := createTestAccount(t, e.DB)
	campaign := createDraftCampaign(t, e, account.ID)
	attachEmails(t, e, account.ID, campaign.ID, "a@example.com", "b@example.com", "c@example.com")

	_, err := e.RecordEvent(context.Background(), campaign.ID, "a@example.com", models.RecipientStatusSent, time.Now())
	require.NoError(t, err)

	all, total, err := e.ListRecipients(context.Background(), account.ID, campaign.ID, RecipientFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	sent, total, err := e.ListRecipients(context.Background(), account.ID, campaign.ID,
		RecipientFilter{Status: models.RecipientStatusSent})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].Email)
}
