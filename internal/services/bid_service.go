package services

import (
	"context"
	"sync"
	"time"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"

	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// BidService validates and commits bids. All checks and the commit run
// inside the per-auction lock, so concurrent bids on one auction
// serialize and each one observes the latest committed price. Event
// publication happens after the lock is released and never unwinds a
// committed bid.
type BidService struct {
	auctions  domain.AuctionRepository
	ledger    domain.BidLedger
	committer domain.BidCommitter
	locks     *LockManager
	events    domain.EventPublisher
	eventCh   chan *domain.AuctionEvent
	closeMu   sync.RWMutex
	closed    bool
	log       logger.Logger
}

func NewBidService(
	auctions domain.AuctionRepository,
	ledger domain.BidLedger,
	committer domain.BidCommitter,
	locks *LockManager,
	events domain.EventPublisher,
	log logger.Logger,
) *BidService {
	s := &BidService{
		auctions:  auctions,
		ledger:    ledger,
		committer: committer,
		locks:     locks,
		events:    events,
		eventCh:   make(chan *domain.AuctionEvent, 256),
		log:       log,
	}

	go s.publishLoop()

	return s
}

// Close stops the event worker after draining queued events. A bid
// still in flight after Close commits normally; its event is dropped,
// which viewers recover from by re-reading auction state.
func (s *BidService) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.eventCh)
	}
}

func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*domain.Bid, error) {
	var bid *domain.Bid

	err := s.locks.WithLock(ctx, AuctionLockKey(auctionID), func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return err
		}

		now := time.Now()

		if auction.Status != domain.StatusActive {
			return domain.ErrNotActive
		}
		// A stale Active row the sweep has not yet closed still rejects.
		if !auction.InWindow(now) {
			return domain.ErrOutOfWindow
		}
		if amount <= auction.Floor() {
			return domain.ErrAmountTooLow
		}
		if auction.CurrentLeaderID != nil && *auction.CurrentLeaderID == bidderID {
			return domain.ErrAlreadyLeading
		}

		var previousLeader string
		if auction.CurrentLeaderID != nil {
			previousLeader = *auction.CurrentLeaderID
		}

		bid = &domain.Bid{
			ID:        uuid.NewString(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}

		auction.CurrentPrice = &bid.Amount
		auction.CurrentLeaderID = &bid.BidderID
		auction.UpdatedAt = now

		if err := s.committer.CommitBid(ctx, auction, bid); err != nil {
			return err
		}

		totalBids, err := s.ledger.CountByAuction(ctx, auctionID)
		if err != nil {
			s.log.Warn("Failed to count bids", "auction_id", auctionID, "error", err)
		}

		// Enqueue while still holding the lock so bid-placed events for
		// one auction enter the queue in commit order even when a lock
		// release is slow; the worker publishes after the lock is gone.
		s.enqueueEvent(&domain.AuctionEvent{
			Type:             domain.EventBidPlaced,
			AuctionID:        auctionID,
			Timestamp:        now,
			Amount:           amount,
			BidderID:         bidderID,
			PreviousLeaderID: previousLeader,
			TotalBids:        totalBids,
		})
		return nil
	})

	if err != nil {
		return nil, err
	}

	return bid, nil
}

func (s *BidService) BidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := s.auctions.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.ledger.GetByAuction(ctx, auctionID)
}

// enqueueEvent hands the event to the publish worker. The queue is
// bounded; when full the event is dropped, since a missed event is
// recoverable by re-reading auction state. The read lock keeps a
// concurrent Close from closing the channel mid-send.
func (s *BidService) enqueueEvent(event *domain.AuctionEvent) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		s.log.Warn("Event worker stopped, dropping event",
			"type", event.Type, "auction_id", event.AuctionID)
		return
	}

	select {
	case s.eventCh <- event:
	default:
		s.log.Warn("Event queue full, dropping event",
			"type", event.Type, "auction_id", event.AuctionID)
	}
}

// publishLoop is the single writer to the event bus for bid events,
// preserving emission order per auction.
func (s *BidService) publishLoop() {
	for event := range s.eventCh {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Error("Failed to publish event",
				"type", event.Type, "auction_id", event.AuctionID, "error", err)
		}
		cancel()
	}
}
