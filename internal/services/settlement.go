package services

import (
	"context"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

// SettlementService hands winning bids off to the downstream transaction
// ledger. The hand-off is recorded in an outbox within the closure's unit of
// work before delivery is attempted, so a crash or a downstream failure after
// the WON marking leaves a pending row instead of a silently lost settlement.
type SettlementService struct {
	settlementRepo domain.SettlementRepository
	auctionRepo    domain.AuctionRepository
	bidRepo        domain.BidRepository
	tx             domain.TxManager
	log            logger.Logger
}

func NewSettlementService(
	settlementRepo domain.SettlementRepository,
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	tx domain.TxManager,
	log logger.Logger,
) *SettlementService {
	return &SettlementService{
		settlementRepo: settlementRepo,
		auctionRepo:    auctionRepo,
		bidRepo:        bidRepo,
		tx:             tx,
		log:            log,
	}
}

// Record persists a pending outbox entry for the winning bid. Called inside
// the closure's unit of work, so the entry commits or rolls back together
// with the WON markings.
func (s *SettlementService) Record(ctx context.Context, auction *domain.Auction, wonBid *domain.Bid) (*domain.SettlementEntry, error) {
	entry := &domain.SettlementEntry{
		ID:        utils.GenerateID("settlement"),
		AuctionID: auction.ID,
		BidID:     wonBid.ID,
		Status:    domain.SettlementPending,
		CreatedAt: time.Now(),
	}

	if err := s.settlementRepo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// DeliverAsync attempts delivery of a recorded entry in the background, after
// the recording unit of work has committed. Failures here never propagate to
// the closure path; the retry worker picks up whatever stays pending.
func (s *SettlementService) DeliverAsync(entry *domain.SettlementEntry) {
	go func() {
		if err := s.deliver(context.Background(), entry); err != nil {
			s.log.Error("Settlement delivery failed, left pending for retry",
				"entry_id", entry.ID, "auction_id", entry.AuctionID, "error", err)
		}
	}()
}

// RetryPending redelivers up to limit pending outbox entries. Invoked
// periodically by the settlement worker on the leader instance.
func (s *SettlementService) RetryPending(ctx context.Context, limit int) {
	entries, err := s.settlementRepo.GetPendingEntries(ctx, limit)
	if err != nil {
		s.log.Error("Failed to load pending settlements", "error", err)
		return
	}

	for _, entry := range entries {
		if err := s.deliver(ctx, entry); err != nil {
			s.log.Error("Settlement retry failed", "entry_id", entry.ID,
				"auction_id", entry.AuctionID, "error", err)
		}
	}
}

// deliver creates the downstream transaction record and completes the entry
// in one unit of work, so a retry can never produce a duplicate transaction
// for an already-delivered entry.
func (s *SettlementService) deliver(ctx context.Context, entry *domain.SettlementEntry) error {
	auction, err := s.auctionRepo.GetAuction(ctx, entry.AuctionID)
	if err != nil {
		return err
	}

	bid, err := s.bidRepo.GetBid(ctx, entry.BidID)
	if err != nil {
		return err
	}

	tx := &domain.Transaction{
		ID:        utils.GenerateID("txn"),
		AuctionID: auction.ID,
		BidID:     bid.ID,
		SellerID:  auction.OwnerID,
		BuyerID:   bid.BidderID,
		Price:     bid.Price,
		CreatedAt: time.Now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.settlementRepo.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return s.settlementRepo.MarkCompleted(ctx, entry.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("Settlement delivered", "entry_id", entry.ID,
		"auction_id", entry.AuctionID, "transaction_id", tx.ID)
	return nil
}
