package domain

import (
	"time"
)

// Auction is a timed sale accepting competing bids until its end time or an
// earlier manual closure. CurrentPrice caches the highest ACTIVE bid price and
// is nil while no active bids exist.
type Auction struct {
	ID           string
	ProductID    string
	OwnerID      string
	StartPrice   int64
	CurrentPrice *int64
	EndTime      time.Time
	Status       AuctionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionWon
	AuctionDeleted
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionWon:
		return "won"
	case AuctionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// IsOwner reports whether the given user owns the auction.
func (a *Auction) IsOwner(userID string) bool {
	return a.OwnerID == userID
}

// Bid is a user's priced offer against an auction. Prices are marketplace
// points, always integral.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Price     int64
	Status    BidStatus
	CreatedAt time.Time
}

type BidStatus int

const (
	BidActive BidStatus = iota
	BidCancelled
	BidWon
)

func (s BidStatus) String() string {
	switch s {
	case BidActive:
		return "active"
	case BidCancelled:
		return "cancelled"
	case BidWon:
		return "won"
	default:
		return "unknown"
	}
}

// BelongsTo reports whether the bid targets the given auction.
func (b *Bid) BelongsTo(auctionID string) bool {
	return b.AuctionID == auctionID
}

// AuctionEvent is published on the event channel after committed admissions
// and closures.
type AuctionEvent struct {
	Type      AuctionEventType `json:"type"`
	AuctionID string           `json:"auction_id"`
	UserID    string           `json:"user_id"`
	Price     int64            `json:"price"`
	Timestamp time.Time        `json:"timestamp"`
}

type AuctionEventType string

const (
	EventBidAccepted  AuctionEventType = "bid_accepted"
	EventBidCancelled AuctionEventType = "bid_cancelled"
	EventAuctionWon   AuctionEventType = "auction_won"
	EventAuctionEnded AuctionEventType = "auction_ended"
)

// SettlementEntry is an outbox row recording a winning bid whose downstream
// transaction record has not been confirmed yet.
type SettlementEntry struct {
	ID        string
	AuctionID string
	BidID     string
	Status    SettlementStatus
	CreatedAt time.Time
}

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
)

// Transaction is the downstream settlement record created for a winning bid.
type Transaction struct {
	ID        string
	AuctionID string
	BidID     string
	SellerID  string
	BuyerID   string
	Price     int64
	CreatedAt time.Time
}
