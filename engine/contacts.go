package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"

	"mailblast/models"
)

// ContactInput carries caller-supplied contact fields.
type ContactInput struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"custom_fields"`
	Source       string            `json:"source"`
}

// CreateContact stores a new contact. (account, normalized email) is unique;
// a second create for the same pair fails with ErrDuplicateContact and never
// overwrites the existing row.
func (e *Engine) CreateContact(ctx context.Context, accountID uint, input ContactInput) (*models.Contact, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingField)
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}

	source := input.Source
	if source == "" {
		source = models.ContactSourceManual
	}

	var contact models.Contact

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Contact
		err := tx.Where("account_id = ? AND email = ?", accountID, email).First(&existing).Error
		if err == nil {
			return ErrDuplicateContact
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		contact = models.Contact{
			AccountID:    accountID,
			Email:        email,
			Name:         input.Name,
			Status:       models.ContactStatusActive,
			Source:       source,
			Tags:         tagsFromStrings(input.Tags),
			CustomFields: customFieldsFromMap(input.CustomFields),
		}
		return tx.Create(&contact).Error
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// GetContact returns a contact owned by the account, with tags and custom
// fields preloaded.
func (e *Engine) GetContact(ctx context.Context, accountID, contactID uint) (*models.Contact, error) {
	var contact models.Contact
	err := e.DB.WithContext(ctx).Preload("Tags").Preload("CustomFields").
		Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// UpdateContactStatus moves a contact along its lifecycle. Moving to
// unsubscribed clears any standing per-recipient unsubscribe tokens for the
// contact's address under this account (the token is single-use).
func (e *Engine) UpdateContactStatus(ctx context.Context, accountID, contactID uint, status string) (*models.Contact, error) {
	switch status {
	case models.ContactStatusActive, models.ContactStatusUnsubscribed,
		models.ContactStatusBounced, models.ContactStatusComplained:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMissingField, status)
	}

	var contact models.Contact

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrContactNotFound
			}
			return err
		}

		contact.Status = status
		if status == models.ContactStatusComplained {
			contact.ComplaintCount++
		}
		if err := tx.Save(&contact).Error; err != nil {
			return err
		}

		if status == models.ContactStatusUnsubscribed {
			campaignIDs := tx.Model(&models.Campaign{}).Select("id").Where("account_id = ?", accountID)
			return tx.Model(&models.Recipient{}).
				Where("email = ? AND campaign_id IN (?)", contact.Email, campaignIDs).
				Update("unsubscribe_token", "").Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact changes name, email or custom fields. Email changes re-check
// the dedup constraint.
func (e *Engine) UpdateContact(ctx context.Context, accountID, contactID uint, input ContactInput) (*models.Contact, error) {
	var contact models.Contact

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrContactNotFound
			}
			return err
		}

		if input.Name != "" {
			contact.Name = input.Name
		}

		if email := normalizeEmail(input.Email); email != "" && email != contact.Email {
			if err := checkmail.ValidateFormat(email); err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidEmail, email)
			}
			var existing models.Contact
			err := tx.Where("account_id = ? AND email = ?", accountID, email).First(&existing).Error
			if err == nil {
				return ErrDuplicateContact
			}
			if err != gorm.ErrRecordNotFound {
				return err
			}
			contact.Email = email
		}

		if input.CustomFields != nil {
			if err := tx.Unscoped().Where("contact_id = ?", contact.ID).
				Delete(&models.ContactCustomField{}).Error; err != nil {
				return err
			}
			for _, f := range customFieldsFromMap(input.CustomFields) {
				f.ContactID = contact.ID
				if err := tx.Create(&f).Error; err != nil {
					return err
				}
			}
		}

		return tx.Save(&contact).Error
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// AddContactTag attaches a label; adding an existing label is a no-op.
func (e *Engine) AddContactTag(ctx context.Context, accountID, contactID uint, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("%w: tag", ErrMissingField)
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := tx.Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrContactNotFound
			}
			return err
		}

		var existing models.ContactTag
		err := tx.Where("contact_id = ? AND tag = ?", contact.ID, tag).First(&existing).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(&models.ContactTag{ContactID: contact.ID, Tag: tag}).Error
	})
}

// RemoveContactTag detaches a label if present.
func (e *Engine) RemoveContactTag(ctx context.Context, accountID, contactID uint, tag string) error {
	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := tx.Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrContactNotFound
			}
			return err
		}
		return tx.Unscoped().Where("contact_id = ? AND tag = ?", contact.ID, tag).
			Delete(&models.ContactTag{}).Error
	})
}

// BulkDeleteContacts hard-deletes the given contacts, best effort among ids
// the account owns; unowned ids are silently skipped. Returns the number
// deleted.
func (e *Engine) BulkDeleteContacts(ctx context.Context, accountID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []uint
		if err := tx.Model(&models.Contact{}).
			Where("account_id = ? AND id IN ?", accountID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}

		if err := tx.Unscoped().Where("contact_id IN ?", owned).Delete(&models.ContactTag{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("contact_id IN ?", owned).Delete(&models.ContactCustomField{}).Error; err != nil {
			return err
		}

		result := tx.Unscoped().Where("id IN ?", owned).Delete(&models.Contact{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ContactFilter narrows ListContacts.
type ContactFilter struct {
	Status string
	Tag    string
	Search string // matches name or email
	Page   int
	Limit  int
}

// ListContacts returns a filtered page of the account's contacts.
func (e *Engine) ListContacts(ctx context.Context, accountID uint, filter ContactFilter) ([]models.Contact, int64, error) {
	query := e.DB.WithContext(ctx).Model(&models.Contact{}).Where("contacts.account_id = ?", accountID)

	if filter.Status != "" {
		query = query.Where("contacts.status = ?", filter.Status)
	}
	if filter.Tag != "" {
		query = query.Joins("JOIN contact_tags ON contact_tags.contact_id = contacts.id").
			Where("contact_tags.tag = ?", filter.Tag)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(contacts.name) LIKE ? OR contacts.email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var contacts []models.Contact
	if err := query.Preload("Tags").Offset((page - 1) * limit).Limit(limit).Find(&contacts).Error; err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// AllContacts returns every contact matching the filter, paging through the
// table internally. Page and Limit on the filter are ignored.
func (e *Engine) AllContacts(ctx context.Context, accountID uint, filter ContactFilter) ([]models.Contact, error) {
	filter.Limit = 100

	var all []models.Contact
	for page := 1; ; page++ {
		filter.Page = page
		contacts, _, err := e.ListContacts(ctx, accountID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, contacts...)
		if len(contacts) < filter.Limit {
			return all, nil
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func tagsFromStrings(tags []string) []models.ContactTag {
	seen := make(map[string]bool, len(tags))
	var result []models.ContactTag
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, models.ContactTag{Tag: tag})
	}
	return result
}

func customFieldsFromMap(fields map[string]string) []models.ContactCustomField {
	var result []models.ContactCustomField
	for name, value := range fields {
		result = append(result, models.ContactCustomField{Name: name, Value: value})
	}
	return result
}
