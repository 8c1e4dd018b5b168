package services

import (
	"context"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

// cancelCutoff is how long before the end time bid cancellation closes.
const cancelCutoff = 30 * time.Minute

// BidService admits, updates and cancels bids. Every write runs under the
// auction's exclusive lock, held for the full read-validate-write sequence, so
// the highest-price cache always equals the max over ACTIVE bids after commit.
type BidService struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	balanceRepo domain.BalanceRepository
	eventPub    domain.EventPublisher
	locks       *AuctionLocks
	tx          domain.TxManager
	log         logger.Logger
}

func NewBidService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	balanceRepo domain.BalanceRepository,
	eventPub domain.EventPublisher,
	locks *AuctionLocks,
	tx domain.TxManager,
	log logger.Logger,
) *BidService {
	return &BidService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		balanceRepo: balanceRepo,
		eventPub:    eventPub,
		locks:       locks,
		tx:          tx,
		log:         log,
	}
}

// CreateBid admits a first bid by this bidder. The price must clear the start
// price and be strictly greater than the current highest active price; ties
// are rejected. The bid amount is reserved from the bidder's point balance in
// the same unit of work.
func (s *BidService) CreateBid(ctx context.Context, auctionID, bidderID string, price int64) (*domain.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.lockedAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkAdmission(ctx, auction, bidderID, price); err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Price:     price,
		Status:    domain.BidActive,
		CreatedAt: time.Now(),
	}

	// Reservation, cache update and bid row commit as one unit of work; a
	// failure anywhere leaves neither a leaked reservation nor a cache entry
	// pointing at a bid that was never persisted.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.balanceRepo.Reserve(ctx, bidderID, price); err != nil {
			return err
		}

		if err := s.auctionRepo.UpdateAuctionPrice(ctx, auctionID, &price); err != nil {
			return err
		}

		return s.bidRepo.CreateBid(ctx, bid)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Bid admitted", "auction_id", auctionID, "bid_id", bid.ID,
		"bidder_id", bidderID, "price", price)
	s.publish(domain.EventBidAccepted, auctionID, bidderID, price)

	return bid, nil
}

// UpdateBid raises an existing bid in place. No new row is created; the
// previously reserved amount is released and the new amount reserved in one
// balance step.
func (s *BidService) UpdateBid(ctx context.Context, auctionID, bidID, bidderID string, newPrice int64) (*domain.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.lockedAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	bid, err := s.bidRepo.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	if bid.BidderID != bidderID {
		return nil, domain.ErrBidNotOwner
	}

	if !bid.BelongsTo(auctionID) {
		return nil, domain.ErrBidAuctionMismatch
	}

	if err := s.checkAdmission(ctx, auction, bidderID, newPrice); err != nil {
		return nil, err
	}

	oldPrice := bid.Price
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.balanceRepo.ReleaseAndReserve(ctx, bidderID, oldPrice, newPrice); err != nil {
			return err
		}

		if err := s.auctionRepo.UpdateAuctionPrice(ctx, auctionID, &newPrice); err != nil {
			return err
		}

		return s.bidRepo.UpdateBidPrice(ctx, bidID, newPrice)
	})
	if err != nil {
		return nil, err
	}

	bid.Price = newPrice

	s.log.Info("Bid updated", "auction_id", auctionID, "bid_id", bidID,
		"bidder_id", bidderID, "price", newPrice)
	s.publish(domain.EventBidAccepted, auctionID, bidderID, newPrice)

	return bid, nil
}

// CancelBid withdraws an active bid. Cancellation is only permitted while
// more than 30 minutes remain before the end time, irrespective of the bid's
// own status. The highest-price cache is recomputed from the remaining active
// bids, or cleared when none remain.
func (s *BidService) CancelBid(ctx context.Context, auctionID, bidderID, bidID string) error {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.lockedAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !now.Before(auction.EndTime) {
		return domain.ErrAuctionClosed
	}

	if auction.EndTime.Sub(now) < cancelCutoff {
		return domain.ErrCancelWindowClosed
	}

	if auction.Status == domain.AuctionWon {
		return domain.ErrAuctionAlreadyWon
	}

	bid, err := s.bidRepo.GetBid(ctx, bidID)
	if err != nil {
		return err
	}

	switch bid.Status {
	case domain.BidWon:
		return domain.ErrCannotCancelWonBid
	case domain.BidCancelled:
		return domain.ErrBidAlreadyCancelled
	}

	if bid.BidderID != bidderID {
		return domain.ErrBidNotOwner
	}

	if !bid.BelongsTo(auctionID) {
		return domain.ErrBidAuctionMismatch
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.bidRepo.UpdateBidStatus(ctx, bidID, domain.BidCancelled); err != nil {
			return err
		}

		if err := s.balanceRepo.Release(ctx, bidderID, bid.Price); err != nil {
			return err
		}

		remaining, err := s.bidRepo.GetHighestActivePrice(ctx, auctionID)
		if err != nil {
			return err
		}

		return s.auctionRepo.UpdateAuctionPrice(ctx, auctionID, remaining)
	})
	if err != nil {
		return err
	}

	s.log.Info("Bid cancelled", "auction_id", auctionID, "bid_id", bidID, "bidder_id", bidderID)
	s.publish(domain.EventBidCancelled, auctionID, bidderID, bid.Price)

	return nil
}

// ListBids returns a page of the auction's bids, newest first.
func (s *BidService) ListBids(ctx context.Context, auctionID string, page, size int) ([]*domain.Bid, int64, error) {
	if _, err := s.auctionRepo.GetAuction(ctx, auctionID); err != nil {
		return nil, 0, err
	}
	return s.bidRepo.ListBidsByAuction(ctx, auctionID, page, size)
}

// ListMyBids returns a page of the user's own bids across auctions.
func (s *BidService) ListMyBids(ctx context.Context, userID string, page, size int) ([]*domain.Bid, int64, error) {
	return s.bidRepo.ListBidsByUser(ctx, userID, page, size)
}

// GetHighestBid returns the auction's highest active bid with its bidder
// identity, or ErrBidNotFound when no active bids exist.
func (s *BidService) GetHighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	bid, err := s.bidRepo.GetHighestActiveBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, domain.ErrBidNotFound
	}
	return bid, nil
}

// GetBid returns a single bid with its (possibly winning) bidder identity.
func (s *BidService) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return s.bidRepo.GetBid(ctx, bidID)
}

// lockedAuction loads the auction under the caller-held lock, hiding deleted
// auctions from every admission path.
func (s *BidService) lockedAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status == domain.AuctionDeleted {
		return nil, domain.ErrAuctionNotFound
	}
	return auction, nil
}

// checkAdmission runs the shared create/update guard set in order: the
// auction must still be running, the bidder must not be the owner, and the
// price must clear both the start price and the current highest active price.
func (s *BidService) checkAdmission(ctx context.Context, auction *domain.Auction, bidderID string, price int64) error {
	if !time.Now().Before(auction.EndTime) {
		return domain.ErrAuctionClosed
	}

	if auction.Status == domain.AuctionWon {
		return domain.ErrAuctionAlreadyWon
	}

	if auction.IsOwner(bidderID) {
		return domain.ErrCannotBidOwnAuction
	}

	if price < auction.StartPrice {
		return domain.ErrBidBelowStartPrice
	}

	highest, err := s.bidRepo.GetHighestActivePrice(ctx, auction.ID)
	if err != nil {
		return err
	}
	if highest != nil && *highest >= price {
		return domain.ErrBidPriceTooLow
	}

	return nil
}

// publish fans the event out best-effort; a publish failure never fails a
// committed admission.
func (s *BidService) publish(eventType domain.AuctionEventType, auctionID, userID string, price int64) {
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
