package engine

import (
	"errors"
	"fmt"
)

// Validation and conflict errors returned synchronously by the engine.
// Controllers map these onto HTTP statuses; none of them mutate state.
var (
	ErrMissingField           = errors.New("missing required field")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrInvalidSchedule        = errors.New("scheduled time must be in the future")
	ErrInvalidStateTransition = errors.New("invalid campaign state transition")
	ErrEmptyRecipientList     = errors.New("campaign has no recipients")
	ErrDuplicateContact       = errors.New("contact with this email already exists")
	ErrUnknownRecipient       = errors.New("recipient not found in campaign")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrContactNotFound        = errors.New("contact not found")
)

// QuotaError carries the gate's denial reason verbatim.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("send not authorized: %s", e.Reason)
}
