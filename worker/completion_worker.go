package worker

import (
	"context"
	"log"
	"time"

	"mailblast/engine"
)

// CompletionWorker sweeps sending campaigns and completes the ones whose
// recipients are all accounted for, or whose dispatch has outlived the
// configured timeout. It is the safety net for dispatchers lost to a crash
// or restart.
type CompletionWorker struct {
	Engine *engine.Engine
	Logger *log.Logger

	Interval time.Duration
}

func NewCompletionWorker(e *engine.Engine, logger *log.Logger) *CompletionWorker {
	return &CompletionWorker{
		Engine:   e,
		Logger:   logger,
		Interval: time.Minute,
	}
}

func (cw *CompletionWorker) Start(ctx context.Context) {
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Completion worker started")

	ticker := time.NewTicker(cw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Completion worker shutting down...")
			return
		case <-ticker.C:
			cw.sweep(ctx)
		}
	}
}

func (cw *CompletionWorker) sweep(ctx context.Context) {
	ids, err := cw.Engine.SendingCampaignIDs(ctx)
	if err != nil {
		cw.Logger.Printf("Error fetching sending campaigns: %v", err)
		return
	}

	for _, id := range ids {
		done, err := cw.Engine.CompleteIfQuiet(ctx, id)
		if err != nil {
			cw.Logger.Printf("Error completing campaign %d: %v", id, err)
			continue
		}
		if done {
			cw.Logger.Printf("Campaign %d completed", id)
		}
	}
}
