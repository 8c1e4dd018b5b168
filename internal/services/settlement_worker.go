package services

import (
	"context"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SettlementWorker sweeps the settlement outbox on a fixed interval and
// redelivers pending entries. Only the leader instance drives retries, so
// multiple replicas never double-deliver.
type SettlementWorker struct {
	cron       *cron.Cron
	settlement *SettlementService
	leader     domain.LeaderElection
	instanceID string
	interval   time.Duration
	batchSize  int
	log        logger.Logger
}

func NewSettlementWorker(settlement *SettlementService, leader domain.LeaderElection,
	instanceID string, interval time.Duration, batchSize int, log logger.Logger) *SettlementWorker {
	return &SettlementWorker{
		cron:       cron.New(),
		settlement: settlement,
		leader:     leader,
		instanceID: instanceID,
		interval:   interval,
		batchSize:  batchSize,
		log:        log,
	}
}

func (w *SettlementWorker) Start(ctx context.Context) error {
	w.log.Info("Starting settlement worker", "interval", w.interval.String())

	_, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), func() {
		w.sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	return nil
}

func (w *SettlementWorker) Stop() error {
	w.log.Info("Stopping settlement worker")
	w.cron.Stop()
	return nil
}

func (w *SettlementWorker) sweep(ctx context.Context) {
	isLeader, err := w.leader.IsLeader(ctx, w.instanceID)
	if err != nil {
		w.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	w.settlement.RetryPending(ctx, w.batchSize)
}
