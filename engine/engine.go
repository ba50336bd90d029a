package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options tunes the engine's dispatch behaviour.
type Options struct {
	// DispatchConcurrency bounds the number of concurrent delivery attempts
	// per campaign, to respect the external mailer's rate limits.
	DispatchConcurrency int

	// DispatchTimeout is how long a campaign may stay in sending before the
	// completion worker force-completes it.
	DispatchTimeout time.Duration

	// DispatchBatchSize is how many pending recipients the dispatcher claims
	// per pass between status re-checks.
	DispatchBatchSize int
}

// DefaultOptions mirror the production configuration defaults.
func DefaultOptions() Options {
	return Options{
		DispatchConcurrency: 10,
		DispatchTimeout:     24 * time.Hour,
		DispatchBatchSize:   100,
	}
}

// Engine owns the campaign lifecycle, the recipient ledger, contact storage
// and statistics derivation. The mailer and the send-authorization gate are
// external collaborators passed in at construction.
type Engine struct {
	DB     *gorm.DB
	Gate   SendGate
	Mailer Mailer
	Logger *logrus.Logger

	opts Options

	// Per-campaign locks serialize recipient mutation and stats recompute on
	// the same campaign. Campaigns never contend with each other.
	locks sync.Map // uint -> *sync.Mutex
}

// New builds an engine. A nil logger falls back to the logrus standard logger.
func New(db *gorm.DB, gate SendGate, mailer Mailer, logger *logrus.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.DispatchConcurrency <= 0 {
		opts.DispatchConcurrency = DefaultOptions().DispatchConcurrency
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = DefaultOptions().DispatchTimeout
	}
	if opts.DispatchBatchSize <= 0 {
		opts.DispatchBatchSize = DefaultOptions().DispatchBatchSize
	}
	return &Engine{
		DB:     db,
		Gate:   gate,
		Mailer: mailer,
		Logger: logger,
		opts:   opts,
	}
}

// campaignLock returns the mutex guarding a single campaign's state.
func (e *Engine) campaignLock(campaignID uint) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(campaignID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
