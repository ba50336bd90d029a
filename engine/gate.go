package engine

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mailblast/models"
)

// Decision is the gate's verdict on a send request.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
	Cost     int    `json:"cost"` // credits to deduct after a successful send
}

// SendGate is consulted before a campaign transitions to sending. The engine
// honors the verdict; policy (credit balances, subscription tiers) lives
// behind the interface.
type SendGate interface {
	Authorize(ctx context.Context, accountID uint, recipientCount int) (Decision, error)

	// RecordUsage reports the actual cost after dispatch. Fire-and-forget
	// from the engine's perspective; implementations log their own failures.
	RecordUsage(ctx context.Context, accountID, campaignID uint, amount int)
}

// CreditGate authorizes sends against the account's email credit balance.
// It is the in-repo reference implementation of SendGate; deployments with
// external billing swap it out at construction.
type CreditGate struct {
	DB *gorm.DB

	// CostPerRecipient is the credit price of one delivery attempt.
	CostPerRecipient int
}

func NewCreditGate(db *gorm.DB, costPerRecipient int) *CreditGate {
	if costPerRecipient <= 0 {
		costPerRecipient = 1
	}
	return &CreditGate{DB: db, CostPerRecipient: costPerRecipient}
}

func (g *CreditGate) Authorize(ctx context.Context, accountID uint, recipientCount int) (Decision, error) {
	var account models.Account
	if err := g.DB.WithContext(ctx).First(&account, accountID).Error; err != nil {
		return Decision{}, err
	}

	if !account.IsActive {
		return Decision{Approved: false, Reason: "account_inactive"}, nil
	}

	cost := recipientCount * g.CostPerRecipient
	if account.EmailCredits < cost {
		return Decision{Approved: false, Reason: "insufficient_credits"}, nil
	}

	return Decision{Approved: true, Cost: cost}, nil
}

func (g *CreditGate) RecordUsage(ctx context.Context, accountID, campaignID uint, amount int) {
	if amount <= 0 {
		return
	}

	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"email_credits":    gorm.Expr("email_credits - ?", amount),
				"credits_consumed": gorm.Expr("credits_consumed + ?", amount),
			}).Error; err != nil {
			return err
		}

		usage := models.CreditUsage{
			AccountID:  accountID,
			CampaignID: &campaignID,
			CreditType: "email",
			Amount:     amount,
			Action:     "campaign_send",
		}
		return tx.Create(&usage).Error
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id":  accountID,
			"campaign_id": campaignID,
			"amount":      amount,
		}).WithError(err).Error("failed to record credit usage")
	}
}
