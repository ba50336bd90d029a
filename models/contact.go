package models

import (
	"gorm.io/gorm"
)

// Contact lifecycle statuses.
const (
	ContactStatusActive       = "active"
	ContactStatusUnsubscribed = "unsubscribed"
	ContactStatusBounced      = "bounced"
	ContactStatusComplained   = "complained"
)

// Contact provenance values.
const (
	ContactSourceManual = "manual"
	ContactSourceCSV    = "csv_import"
	ContactSourceAPI    = "api"
	ContactSourceForm   = "form"
)

// Contact represents a persistent address book entry, unique per
// (account, lowercased email).
type Contact struct {
	gorm.Model
	AccountID uint `gorm:"not null;uniqueIndex:idx_contacts_account_email" json:"account_id"`

	Email string `gorm:"not null;uniqueIndex:idx_contacts_account_email" json:"email"`
	Name  string `json:"name"`

	// Status
	Status string `gorm:"default:'active'" json:"status"` // active, unsubscribed, bounced, complained
	Source string `gorm:"default:'manual'" json:"source"` // manual, csv_import, api, form

	// Delivery health counters, maintained by the recipient ledger
	BounceCount    int `gorm:"default:0" json:"bounce_count"`
	ComplaintCount int `gorm:"default:0" json:"complaint_count"`

	// Relations
	Tags         []ContactTag         `gorm:"foreignKey:ContactID" json:"tags,omitempty"`
	CustomFields []ContactCustomField `gorm:"foreignKey:ContactID" json:"custom_fields,omitempty"`
}

// ContactTag represents a free-form label on a contact (normalized).
type ContactTag struct {
	gorm.Model
	ContactID uint   `gorm:"not null;index" json:"contact_id"`
	Tag       string `gorm:"not null;index" json:"tag"`
}

// ContactCustomField represents an arbitrary key/value attribute of a contact.
type ContactCustomField struct {
	gorm.Model
	ContactID uint   `gorm:"not null;index" json:"contact_id"`
	Name      string `gorm:"not null;index" json:"name"`
	Value     string `gorm:"type:text" json:"value"`
}
