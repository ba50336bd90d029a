package models

import "gorm.io/gorm"

// CreditUsage records a post-send credit deduction reported to the gate.
// Purchases and balances are managed by an external billing system; the
// engine only appends usage rows.
type CreditUsage struct {
	gorm.Model
	AccountID  uint  `gorm:"not null;index" json:"account_id"`
	CampaignID *uint `gorm:"index" json:"campaign_id,omitempty"`

	// Usage details
	CreditType string `gorm:"not null;default:'email'" json:"credit_type"`
	Amount     int    `gorm:"not null" json:"amount"` // always positive
	Action     string `gorm:"not null" json:"action"` // campaign_send

	// Relations
	Account  Account   `json:"-"`
	Campaign *Campaign `json:"campaign,omitempty"`
}
