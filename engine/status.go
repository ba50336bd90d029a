package engine

import "mailblast/models"

// statusRank orders the engagement chain. Bounced and unsubscribed are not
// ranked: they are absorbing and reachable from any non-terminal status.
var statusRank = map[string]int{
	models.RecipientStatusPending:   0,
	models.RecipientStatusSent:      1,
	models.RecipientStatusDelivered: 2,
	models.RecipientStatusOpened:    3,
	models.RecipientStatusClicked:   4,
}

// IsTerminalRecipientStatus reports whether no further transition is
// expected from the given status.
func IsTerminalRecipientStatus(status string) bool {
	return status == models.RecipientStatusBounced ||
		status == models.RecipientStatusUnsubscribed
}

// IsRecipientStatus reports whether s is a known recipient status.
func IsRecipientStatus(s string) bool {
	if _, ok := statusRank[s]; ok {
		return true
	}
	return IsTerminalRecipientStatus(s)
}

// statusSupersedes reports whether an incoming event status should replace
// the current one. Equal or earlier events are no-ops (idempotent delivery
// from at-least-once transports); absorbing statuses are never superseded.
func statusSupersedes(current, next string) bool {
	if IsTerminalRecipientStatus(current) {
		return false
	}
	if IsTerminalRecipientStatus(next) {
		return true
	}
	return statusRank[next] > statusRank[current]
}

// Campaign lifecycle events.
const (
	eventSchedule = "schedule"
	eventSend     = "send"
	eventPause    = "pause"
	eventResume   = "resume"
	eventCancel   = "cancel"
	eventComplete = "complete"
)

// campaignTransitions lists, per event, the states carrying an outgoing edge
// for it. Anything else fails with ErrInvalidStateTransition.
var campaignTransitions = map[string][]string{
	eventSchedule: {models.CampaignStatusDraft},
	eventSend:     {models.CampaignStatusDraft, models.CampaignStatusScheduled},
	eventPause:    {models.CampaignStatusSending},
	eventResume:   {models.CampaignStatusPaused},
	eventCancel:   {models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusPaused},
	eventComplete: {models.CampaignStatusSending},
}

func canTransition(event, from string) bool {
	for _, s := range campaignTransitions[event] {
		if s == from {
			return true
		}
	}
	return false
}

// targetState maps an event to the state it lands in.
var targetState = map[string]string{
	eventSchedule: models.CampaignStatusScheduled,
	eventSend:     models.CampaignStatusSending,
	eventPause:    models.CampaignStatusPaused,
	eventResume:   models.CampaignStatusSending,
	eventCancel:   models.CampaignStatusCancelled,
	eventComplete: models.CampaignStatusSent,
}
