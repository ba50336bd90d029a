package models

import (
	"time"

	"gorm.io/gorm"
)

// Account represents an owning account in the system. Authentication and
// billing flows live outside this service; the account row carries the
// credit balance the send gate consults.
type Account struct {
	gorm.Model

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`

	Timezone string `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Credit-based plan information
	PlanName        string     `gorm:"default:'free'" json:"plan_name"`   // free, starter, grow, enterprise
	EmailCredits    int        `gorm:"default:5000" json:"email_credits"` // 5000 free credits for new accounts
	CreditsConsumed int        `gorm:"default:0" json:"credits_consumed"`
	LastCreditReset *time.Time `json:"last_credit_reset"`

	// Relations
	Campaigns    []Campaign    `gorm:"foreignKey:AccountID" json:"campaigns,omitempty"`
	Contacts     []Contact     `gorm:"foreignKey:AccountID" json:"contacts,omitempty"`
	CreditUsages []CreditUsage `gorm:"foreignKey:AccountID" json:"credit_usages,omitempty"`
}
