package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	// UpdateAuctionPrice writes the highest-price cache; nil clears it.
	UpdateAuctionPrice(ctx context.Context, auctionID string, price *int64) error
	// GetOpenAuctionsEndingAfter lists auctions that are open, not deleted,
	// not won, with end time strictly after t. Used by startup recovery.
	GetOpenAuctionsEndingAfter(ctx context.Context, t time.Time) ([]*Auction, error)
	ListAuctions(ctx context.Context, page, size int) ([]*Auction, int64, error)
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	UpdateBidPrice(ctx context.Context, bidID string, price int64) error
	UpdateBidStatus(ctx context.Context, bidID string, status BidStatus) error
	// GetHighestActiveBid returns the highest-priced ACTIVE bid for the
	// auction, ties broken by earliest creation time, or nil when none exist.
	GetHighestActiveBid(ctx context.Context, auctionID string) (*Bid, error)
	// GetHighestActivePrice returns the max price over ACTIVE bids, or nil
	// when the auction has none.
	GetHighestActivePrice(ctx context.Context, auctionID string) (*int64, error)
	ListBidsByAuction(ctx context.Context, auctionID string, page, size int) ([]*Bid, int64, error)
	ListBidsByUser(ctx context.Context, userID string, page, size int) ([]*Bid, int64, error)
}

// BalanceRepository mutates a user's point balance. Implementations must be
// atomic per call and must never drive a balance negative.
type BalanceRepository interface {
	// Reserve deducts amount from the user's balance, failing with
	// ErrInsufficientBalance when the balance does not cover it.
	Reserve(ctx context.Context, userID string, amount int64) error
	// ReleaseAndReserve returns oldAmount and deducts newAmount in one step.
	ReleaseAndReserve(ctx context.Context, userID string, oldAmount, newAmount int64) error
	// Release returns a previously reserved amount.
	Release(ctx context.Context, userID string, amount int64) error
}

// TxManager runs a function as one atomic unit of work. Repository calls made
// with the context it passes to fn join the same transaction; any error rolls
// the whole unit back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SettlementRepository persists the settlement outbox and the transaction
// records it eventually produces.
type SettlementRepository interface {
	CreateEntry(ctx context.Context, entry *SettlementEntry) error
	GetPendingEntries(ctx context.Context, limit int) ([]*SettlementEntry, error)
	MarkCompleted(ctx context.Context, entryID string) error
	CreateTransaction(ctx context.Context, tx *Transaction) error
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// AuctionCloser runs the closure algorithm for one auction. The scheduler
// invokes it when a timer fires; it must be idempotent under duplicate firing.
type AuctionCloser interface {
	CloseAuction(ctx context.Context, auctionID string) error
}

// ClosureScheduler owns one timer per open auction and fires the closer at
// end time.
type ClosureScheduler interface {
	Schedule(auctionID string, fireAt time.Time) error
	Cancel(auctionID string)
	Recover(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Notification interfaces
type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	BroadcastToAuction(auctionID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
