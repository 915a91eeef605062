package services

import (
	"context"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"
)

// EventRelay consumes the event bus and fans events out to the rooms.
// One relay goroutine per process keeps same-type events for one
// auction in emission order.
type EventRelay struct {
	subscriber domain.EventSubscriber
	rooms      domain.ConnectionManager
	log        logger.Logger
}

func NewEventRelay(subscriber domain.EventSubscriber, rooms domain.ConnectionManager, log logger.Logger) *EventRelay {
	return &EventRelay{
		subscriber: subscriber,
		rooms:      rooms,
		log:        log,
	}
}

// Run blocks until ctx is cancelled.
func (r *EventRelay) Run(ctx context.Context) error {
	return r.subscriber.Subscribe(ctx, r.handle)
}

func (r *EventRelay) handle(event *domain.AuctionEvent) error {
	switch event.Type {
	case domain.EventBidPlaced:
		// The previous leader gets a direct outbid notice on top of the
		// room broadcast.
		if event.PreviousLeaderID != "" {
			r.rooms.NotifyUser(event.PreviousLeaderID, map[string]interface{}{
				"type":       "outbid",
				"auction_id": event.AuctionID,
				"amount":     event.Amount,
			})
		}
		r.rooms.NotifyUser(event.BidderID, map[string]interface{}{
			"type":       "bid_accepted",
			"auction_id": event.AuctionID,
			"amount":     event.Amount,
		})
		r.rooms.BroadcastToRoom(event.AuctionID, event)

	case domain.EventAuctionEnded:
		r.rooms.BroadcastToRoom(event.AuctionID, event)
		r.rooms.CloseRoom(event.AuctionID)

	default:
		r.rooms.BroadcastToRoom(event.AuctionID, event)
	}

	return nil
}
