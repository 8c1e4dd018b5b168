package domain

import "errors"

// Not-found errors.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Admission and lifecycle precondition failures. These surface synchronously
// to callers and never mutate state.
var (
	ErrAuctionClosed       = errors.New("auction already closed")
	ErrAuctionAlreadyWon   = errors.New("auction already won")
	ErrAuctionNotOpen      = errors.New("auction is not open")
	ErrNotAuctionOwner     = errors.New("caller is not the auction owner")
	ErrCannotBidOwnAuction = errors.New("cannot bid on own auction")
	ErrBidBelowStartPrice  = errors.New("bid price below auction start price")
	ErrBidPriceTooLow      = errors.New("bid price not above current highest bid")
	ErrBidNotOwner         = errors.New("caller is not the bid owner")
	ErrBidAuctionMismatch  = errors.New("bid does not belong to auction")
	ErrCannotCancelWonBid  = errors.New("cannot cancel a won bid")
	ErrBidAlreadyCancelled = errors.New("bid already cancelled")
	ErrCancelWindowClosed  = errors.New("bid cancellation window has closed")
	ErrInsufficientBalance = errors.New("insufficient point balance")
)

// Scheduler errors.
var (
	ErrInvalidSchedule  = errors.New("schedule time must be in the future")
	ErrSchedulerStopped = errors.New("scheduler is shutting down")
)
