package services

import (
	"context"
	"errors"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

// AuctionService owns the auction lifecycle: creation with a scheduled
// closure, the closure state machine OPEN → {WON, lapsed, DELETED}, manual
// early ending and deletion. WON and DELETED are terminal and mutually
// exclusive.
type AuctionService struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	settlement  *SettlementService
	scheduler   domain.ClosureScheduler
	eventPub    domain.EventPublisher
	locks       *AuctionLocks
	tx          domain.TxManager
	log         logger.Logger
}

func NewAuctionService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	settlement *SettlementService,
	scheduler domain.ClosureScheduler,
	eventPub domain.EventPublisher,
	locks *AuctionLocks,
	tx domain.TxManager,
	log logger.Logger,
) *AuctionService {
	return &AuctionService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		settlement:  settlement,
		scheduler:   scheduler,
		eventPub:    eventPub,
		locks:       locks,
		tx:          tx,
		log:         log,
	}
}

// CreateAuction persists a new open auction and schedules its closure. The
// end time must be strictly in the future.
func (s *AuctionService) CreateAuction(ctx context.Context, ownerID, productID string,
	startPrice int64, endTime time.Time) (*domain.Auction, error) {

	auction := &domain.Auction{
		ID:         utils.GenerateID("auction"),
		ProductID:  productID,
		OwnerID:    ownerID,
		StartPrice: startPrice,
		EndTime:    endTime,
		Status:     domain.AuctionOpen,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := s.scheduler.Schedule(auction.ID, endTime); err != nil {
		return nil, err
	}

	if err := s.auctionRepo.CreateAuction(ctx, auction); err != nil {
		s.scheduler.Cancel(auction.ID)
		return nil, err
	}

	s.log.Info("Auction created", "auction_id", auction.ID, "owner_id", ownerID,
		"end_time", endTime)
	return auction, nil
}

// CloseAuction runs the closure algorithm for one auction, whether triggered
// by the scheduler or by a manual early end. It re-fetches the auction under
// a fresh lock and is an idempotent no-op when the auction is gone, already
// won or deleted, so duplicate firings and races with manual end or deletion
// settle into exactly one terminal state.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID string) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			// Deleted between scheduling and firing.
			s.log.Warn("Auction to close not found", "auction_id", auctionID)
			return nil
		}
		return err
	}

	if auction.Status == domain.AuctionWon || auction.Status == domain.AuctionDeleted {
		s.log.Warn("Auction already terminal, skipping closure",
			"auction_id", auctionID, "status", auction.Status.String())
		return nil
	}

	wonBid, err := s.bidRepo.GetHighestActiveBid(ctx, auctionID)
	if err != nil {
		return err
	}

	if wonBid == nil {
		// Lapsed: no state mutation, admission's end-time check blocks
		// further bidding.
		s.log.Info("Auction lapsed with no active bids", "auction_id", auctionID)
		return nil
	}

	// The two WON markings and the outbox entry commit as one unit of work; a
	// failure anywhere leaves the auction fully open for re-resolution, never
	// with a stranded WON bid.
	var entry *domain.SettlementEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.bidRepo.UpdateBidStatus(ctx, wonBid.ID, domain.BidWon); err != nil {
			return err
		}

		if err := s.auctionRepo.UpdateAuctionStatus(ctx, auctionID, domain.AuctionWon); err != nil {
			return err
		}

		entry, err = s.settlement.Record(ctx, auction, wonBid)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info("Auction won", "auction_id", auctionID, "bid_id", wonBid.ID,
		"bidder_id", wonBid.BidderID, "price", wonBid.Price)

	// Delivery is asynchronous and never rolls back the committed WON
	// marking; a failed delivery stays pending in the outbox for retry.
	s.settlement.DeliverAsync(entry)

	s.publish(domain.EventAuctionWon, auctionID, wonBid.BidderID, wonBid.Price)

	return nil
}

// ManualEndAuction ends the auction early on the owner's request, running the
// same closure algorithm and then cancelling the pending timer. The timer's
// later natural fire, if already dispatched, hits the terminal-status guard.
func (s *AuctionService) ManualEndAuction(ctx context.Context, auctionID, callerID string) error {
	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	if auction.Status == domain.AuctionDeleted {
		return domain.ErrAuctionNotFound
	}

	if !auction.IsOwner(callerID) {
		return domain.ErrNotAuctionOwner
	}

	if err := s.CloseAuction(ctx, auctionID); err != nil {
		return err
	}

	s.scheduler.Cancel(auctionID)

	s.log.Info("Auction ended manually", "auction_id", auctionID, "caller_id", callerID)
	return nil
}

// DeleteAuction removes an open auction on the owner's request, cancelling
// its timer without running winner selection.
func (s *AuctionService) DeleteAuction(ctx context.Context, auctionID, callerID string) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	if auction.Status != domain.AuctionOpen {
		return domain.ErrAuctionNotOpen
	}

	if !auction.IsOwner(callerID) {
		return domain.ErrNotAuctionOwner
	}

	if err := s.auctionRepo.UpdateAuctionStatus(ctx, auctionID, domain.AuctionDeleted); err != nil {
		return err
	}

	s.scheduler.Cancel(auctionID)

	s.log.Info("Auction deleted", "auction_id", auctionID, "caller_id", callerID)
	s.publish(domain.EventAuctionEnded, auctionID, callerID, 0)

	return nil
}

// GetAuction returns a single auction; deleted auctions read as not found.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status == domain.AuctionDeleted {
		return nil, domain.ErrAuctionNotFound
	}
	return auction, nil
}

// ListAuctions returns a page of non-deleted auctions, newest first.
func (s *AuctionService) ListAuctions(ctx context.Context, page, size int) ([]*domain.Auction, int64, error) {
	return s.auctionRepo.ListAuctions(ctx, page, size)
}

func (s *AuctionService) publish(eventType domain.AuctionEventType, auctionID, userID string, price int64) {
	event := &domain.AuctionEvent{
		Type:      eventType,
		AuctionID: auctionID,
		UserID:    userID,
		Price:     price,
		Timestamp: time.Now(),
	}

	if err := s.eventPub.PublishAuctionEvent(context.Background(), event); err != nil {
		s.log.Error("Failed to publish auction event", "type", eventType,
			"auction_id", auctionID, "error", err)
	}
}
