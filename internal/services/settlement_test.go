package services

import (
	"context"
	"testing"
	"time"

	"auction-core/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPendingDeliversOutboxEntry(t *testing.T) {
	auctionRepo := newMemAuctionRepo()
	bidRepo := newMemBidRepo()
	settlementRepo := newMemSettlementRepo()
	svc := NewSettlementService(settlementRepo, auctionRepo, bidRepo,
		newMemTxManager(settlementRepo), nopLogger{})
	ctx := context.Background()

	require.NoError(t, auctionRepo.CreateAuction(ctx, &domain.Auction{
		ID:         "auction-1",
		OwnerID:    "seller-1",
		StartPrice: 100,
		EndTime:    time.Now().Add(-time.Minute),
		Status:     domain.AuctionWon,
	}))
	require.NoError(t, bidRepo.CreateBid(ctx, &domain.Bid{
		ID:        "bid-1",
		AuctionID: "auction-1",
		BidderID:  "bidder-x",
		Price:     200,
		Status:    domain.BidWon,
	}))
	require.NoError(t, settlementRepo.CreateEntry(ctx, &domain.SettlementEntry{
		ID:        "settlement-1",
		AuctionID: "auction-1",
		BidID:     "bid-1",
		Status:    domain.SettlementPending,
		CreatedAt: time.Now(),
	}))

	svc.RetryPending(ctx, 10)

	require.Equal(t, 1, settlementRepo.transactionCount())
	settlementRepo.mu.Lock()
	tx := settlementRepo.transactions[0]
	entry := settlementRepo.entries["settlement-1"]
	settlementRepo.mu.Unlock()

	assert.Equal(t, "seller-1", tx.SellerID)
	assert.Equal(t, "bidder-x", tx.BuyerID)
	assert.Equal(t, int64(200), tx.Price)
	assert.Equal(t, domain.SettlementCompleted, entry.Status)

	// Nothing pending is left for the next sweep.
	pending, err := settlementRepo.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryPendingLeavesEntryOnDeliveryFailure(t *testing.T) {
	auctionRepo := newMemAuctionRepo()
	bidRepo := newMemBidRepo()
	settlementRepo := newMemSettlementRepo()
	svc := NewSettlementService(settlementRepo, auctionRepo, bidRepo,
		newMemTxManager(settlementRepo), nopLogger{})
	ctx := context.Background()

	// The referenced auction does not exist, so delivery cannot complete.
	require.NoError(t, settlementRepo.CreateEntry(ctx, &domain.SettlementEntry{
		ID:        "settlement-1",
		AuctionID: "auction-gone",
		BidID:     "bid-1",
		Status:    domain.SettlementPending,
		CreatedAt: time.Now(),
	}))

	svc.RetryPending(ctx, 10)

	assert.Zero(t, settlementRepo.transactionCount())
	pending, err := settlementRepo.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "settlement-1", pending[0].ID)
}
