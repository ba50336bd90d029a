package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusPaused    = "paused"
	CampaignStatusCancelled = "cancelled"
)

// Recipient delivery statuses.
const (
	RecipientStatusPending      = "pending"
	RecipientStatusSent         = "sent"
	RecipientStatusDelivered    = "delivered"
	RecipientStatusOpened       = "opened"
	RecipientStatusClicked      = "clicked"
	RecipientStatusBounced      = "bounced"
	RecipientStatusUnsubscribed = "unsubscribed"
)

// Campaign represents one outbound email blast. It is the aggregate root:
// recipients are composition and do not outlive their campaign.
type Campaign struct {
	gorm.Model
	AccountID uint `gorm:"not null;index" json:"account_id"`

	// Campaign details
	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	Body        string `gorm:"type:text" json:"body"`
	PreviewText string `json:"preview_text"`
	Type        string `json:"type"`  // newsletter, promotional, transactional, ...
	Style       string `json:"style"` // classification only, opaque to the engine

	// Scheduling
	Status      string     `gorm:"default:'draft'" json:"status"` // draft, scheduled, sending, sent, paused, cancelled
	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Sender identity and tracking settings
	FromName        string `json:"from_name"`
	FromEmail       string `json:"from_email"`
	ReplyTo         string `json:"reply_to"`
	TrackOpens      bool   `gorm:"default:true" json:"track_opens"`
	TrackClicks     bool   `gorm:"default:true" json:"track_clicks"`
	UnsubscribeLink bool   `gorm:"default:true" json:"unsubscribe_link"`

	// AI provenance (metadata only)
	GeneratedByAI bool   `gorm:"default:false" json:"generated_by_ai"`
	AIPrompt      string `gorm:"type:text" json:"ai_prompt,omitempty"`
	AIModel       string `json:"ai_model,omitempty"`

	// Statistics snapshot. Derived from the recipient rows by
	// engine.Recompute and overwritten wholesale; never incremented in place.
	TotalRecipients   int     `gorm:"default:0" json:"total_recipients"`
	TotalSent         int     `gorm:"default:0" json:"total_sent"`
	TotalDelivered    int     `gorm:"default:0" json:"total_delivered"`
	TotalOpened       int     `gorm:"default:0" json:"total_opened"`
	TotalClicked      int     `gorm:"default:0" json:"total_clicked"`
	TotalBounced      int     `gorm:"default:0" json:"total_bounced"`
	TotalUnsubscribed int     `gorm:"default:0" json:"total_unsubscribed"`
	OpenRate          float64 `gorm:"default:0" json:"open_rate"`
	ClickRate         float64 `gorm:"default:0" json:"click_rate"`
	BounceRate        float64 `gorm:"default:0" json:"bounce_rate"`

	// Relations
	Recipients []Recipient `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"recipients,omitempty"`
}

// Recipient is one (campaign, address) delivery target. Email and name are
// denormalized so the row survives deletion of the contact it came from;
// ContactID is nil for ad hoc addresses.
type Recipient struct {
	gorm.Model
	CampaignID uint  `gorm:"not null;uniqueIndex:idx_recipients_campaign_email" json:"campaign_id"`
	ContactID  *uint `gorm:"index" json:"contact_id,omitempty"`

	Email string `gorm:"not null;uniqueIndex:idx_recipients_campaign_email" json:"email"`
	Name  string `json:"name"`

	Status string `gorm:"default:'pending'" json:"status"`

	// One timestamp per status reached
	SentAt         *time.Time `json:"sent_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	OpenedAt       *time.Time `json:"opened_at"`
	ClickedAt      *time.Time `json:"clicked_at"`
	BouncedAt      *time.Time `json:"bounced_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	// Per-recipient token for one-click unsubscribe and tracking links.
	// Cleared when the contact unsubscribes (single-use).
	UnsubscribeToken string `gorm:"index" json:"-"`

	// Provider message id from the delivery attempt
	MessageID string `gorm:"index" json:"message_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}
