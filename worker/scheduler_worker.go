package worker

import (
	"context"
	"log"
	"time"

	"mailblast/engine"
)

// SchedulerWorker promotes scheduled campaigns to sending once their
// scheduled time has passed.
type SchedulerWorker struct {
	Engine *engine.Engine
	Logger *log.Logger

	// Interval between sweeps; defaults to 30s.
	Interval time.Duration
}

func NewSchedulerWorker(e *engine.Engine, logger *log.Logger) *SchedulerWorker {
	return &SchedulerWorker{
		Engine:   e,
		Logger:   logger,
		Interval: 30 * time.Second,
	}
}

func (sw *SchedulerWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Println("Scheduler worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Scheduler worker shutting down...")
			return
		case <-ticker.C:
			sw.processDueCampaigns(ctx)
		}
	}
}

func (sw *SchedulerWorker) processDueCampaigns(ctx context.Context) {
	due, err := sw.Engine.DueScheduledCampaigns(ctx)
	if err != nil {
		sw.Logger.Printf("Error fetching due campaigns: %v", err)
		return
	}

	for _, campaign := range due {
		if _, err := sw.Engine.Send(ctx, campaign.AccountID, campaign.ID); err != nil {
			sw.Logger.Printf("Error launching scheduled campaign %d: %v", campaign.ID, err)
			continue
		}
		sw.Logger.Printf("Scheduled campaign %d launched", campaign.ID)
	}
}
