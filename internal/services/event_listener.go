package services

import (
	"context"
	"fmt"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// EventListener consumes the auction event channel and fans events out to
// websocket watchers of the affected auction.
type EventListener struct {
	broadcaster domain.AuctionBroadcaster
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster: broadcaster,
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.AuctionEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.EventBidAccepted:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":          "bid_update",
			"current_price": event.Price,
			"bidder_id":     event.UserID,
			"timestamp":     event.Timestamp,
		})
	case domain.EventBidCancelled:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":      "bid_cancelled",
			"bidder_id": event.UserID,
			"timestamp": event.Timestamp,
		})
	case domain.EventAuctionWon:
		if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":      "auction_won",
			"winner_id": event.UserID,
			"price":     event.Price,
			"timestamp": event.Timestamp,
		}); err != nil {
			el.log.Error("Failed to broadcast auction won event", "error", err)
		}
		return el.connManager.CloseAndUnregisterConnections(event.AuctionID)
	case domain.EventAuctionEnded:
		if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":      "auction_ended",
			"timestamp": event.Timestamp,
		}); err != nil {
			el.log.Error("Failed to broadcast auction ended event", "error", err)
		}
		return el.connManager.CloseAndUnregisterConnections(event.AuctionID)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}
