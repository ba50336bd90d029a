package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailblast/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// stubGate approves or denies every request with a fixed verdict and records
// usage calls.
type stubGate struct {
	mu       sync.Mutex
	approved bool
	reason   string
	cost     int
	usage    []int
}

func approveGate(cost int) *stubGate {
	return &stubGate{approved: true, cost: cost}
}

func denyGate(reason string) *stubGate {
	return &stubGate{approved: false, reason: reason}
}

func (g *stubGate) Authorize(ctx context.Context, accountID uint, recipientCount int) (Decision, error) {
	if !g.approved {
		return Decision{Approved: false, Reason: g.reason}, nil
	}
	return Decision{Approved: true, Cost: g.cost}, nil
}

func (g *stubGate) RecordUsage(ctx context.Context, accountID, campaignID uint, amount int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage = append(g.usage, amount)
}

func (g *stubGate) recordedUsage() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.usage...)
}

// stubMailer succeeds for every address not listed in fail, and remembers
// what it delivered.
type stubMailer struct {
	mu        sync.Mutex
	fail      map[string]bool
	delivered []OutboundMessage
}

func newStubMailer(failEmails ...string) *stubMailer {
	fail := make(map[string]bool, len(failEmails))
	for _, email := range failEmails {
		fail[email] = true
	}
	return &stubMailer{fail: fail}
}

func (m *stubMailer) Deliver(ctx context.Context, msg OutboundMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.RecipientEmail] {
		return "", fmt.Errorf("smtp: mailbox unavailable")
	}
	m.delivered = append(m.delivered, msg)
	return fmt.Sprintf("msg-%d", len(m.delivered)), nil
}

func (m *stubMailer) deliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

func newTestEngine(t *testing.T, gate SendGate, mailer Mailer) *Engine {
	t.Helper()
	if gate == nil {
		gate = approveGate(0)
	}
	if mailer == nil {
		mailer = newStubMailer()
	}
	return New(newTestDB(t), gate, mailer, newTestLogger(), Options{
		DispatchConcurrency: 4,
		DispatchTimeout:     time.Hour,
		DispatchBatchSize:   50,
	})
}

func createTestAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	account := models.Account{
		Email:        fmt.Sprintf("owner-%s@example.com", t.Name()),
		Name:         "Test Account",
		IsActive:     true,
		PlanName:     "free",
		EmailCredits: 5000,
	}
	require.NoError(t, db.Create(&account).Error)
	return &account
}

func createDraftCampaign(t *testing.T, e *Engine, accountID uint) *models.Campaign {
	t.Helper()
	campaign, err := e.CreateCampaign(context.Background(), accountID, CampaignInput{
		Name:      "Launch",
		Subject:   "Big news",
		Body:      "<p>Hello {{name}}</p>",
		FromName:  "Acme",
		FromEmail: "news@acme.test",
	})
	require.NoError(t, err)
	return campaign
}

func attachEmails(t *testing.T, e *Engine, accountID, campaignID uint, emails ...string) {
	t.Helper()
	for _, email := range emails {
		_, err := e.Attach(context.Background(), accountID, campaignID, AttachInput{Email: email})
		require.NoError(t, err)
	}
}

func campaignStatus(t *testing.T, e *Engine, campaignID uint) string {
	t.Helper()
	var campaign models.Campaign
	require.NoError(t, e.DB.First(&campaign, campaignID).Error)
	return campaign.Status
}
