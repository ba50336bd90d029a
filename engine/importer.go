package engine

import (
	"context"
	"strings"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"

	"mailblast/models"
)

// ImportRow is one parsed record of a contact import.
type ImportRow struct {
	Name         string
	Email        string
	Tags         []string
	CustomFields map[string]string
}

// ImportRowError pins a rejected row to its position and reason.
type ImportRowError struct {
	Row    int    `json:"row"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

const (
	ImportReasonMissingField = "missing_field"
	ImportReasonInvalidEmail = "invalid_email"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	TotalProcessed  int              `json:"total_processed"`
	Created         int              `json:"created"`
	Duplicates      int              `json:"duplicates"`
	Errors          int              `json:"errors"`
	CreatedContacts []models.Contact `json:"created_contacts"`
	DuplicateEmails []string         `json:"duplicate_emails"`
	ImportErrors    []ImportRowError `json:"import_errors"`
}

// ImportContacts bulk-loads rows for an account. Each row stands alone: a bad
// or duplicate row is reported and skipped, never failing the batch, and rows
// created before it stay created. Duplicates are judged against both the
// stored contacts and earlier rows of the same input.
func (e *Engine) ImportContacts(ctx context.Context, accountID uint, rows []ImportRow) (*ImportResult, error) {
	result := &ImportResult{
		TotalProcessed:  len(rows),
		CreatedContacts: []models.Contact{},
		DuplicateEmails: []string{},
		ImportErrors:    []ImportRowError{},
	}
	if len(rows) == 0 {
		return result, nil
	}

	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if email := normalizeEmail(row.Email); email != "" {
			emails = append(emails, email)
		}
	}

	existing := make(map[string]bool)
	if len(emails) > 0 {
		var stored []string
		if err := e.DB.WithContext(ctx).Model(&models.Contact{}).
			Where("account_id = ? AND email IN ?", accountID, emails).
			Pluck("email", &stored).Error; err != nil {
			return nil, err
		}
		for _, email := range stored {
			existing[email] = true
		}
	}

	seen := make(map[string]bool)
	var toCreate []models.Contact

	for i, row := range rows {
		rowNum := i + 1 // 1-based, header excluded
		email := normalizeEmail(row.Email)

		if email == "" || strings.TrimSpace(row.Name) == "" {
			result.Errors++
			result.ImportErrors = append(result.ImportErrors, ImportRowError{
				Row: rowNum, Email: email, Reason: ImportReasonMissingField,
			})
			continue
		}
		if err := checkmail.ValidateFormat(email); err != nil {
			result.Errors++
			result.ImportErrors = append(result.ImportErrors, ImportRowError{
				Row: rowNum, Email: email, Reason: ImportReasonInvalidEmail,
			})
			continue
		}
		if existing[email] || seen[email] {
			result.Duplicates++
			result.DuplicateEmails = append(result.DuplicateEmails, email)
			continue
		}

		seen[email] = true
		toCreate = append(toCreate, models.Contact{
			AccountID:    accountID,
			Email:        email,
			Name:         strings.TrimSpace(row.Name),
			Status:       models.ContactStatusActive,
			Source:       models.ContactSourceCSV,
			Tags:         tagsFromStrings(row.Tags),
			CustomFields: customFieldsFromMap(row.CustomFields),
		})
	}

	if len(toCreate) > 0 {
		err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(&toCreate, 100).Error
		})
		if err != nil {
			return nil, err
		}
		result.Created = len(toCreate)
		result.CreatedContacts = toCreate
	}

	return result, nil
}
