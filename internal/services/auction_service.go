package services

import (
	"context"
	"errors"
	"time"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"

	"github.com/google/uuid"
)

var ErrInvalidWindow = errors.New("auction window is invalid")

// AuctionService is the listing boundary: creating, reading and
// cancelling auctions. Cancellation shares the per-auction lock with
// bid acceptance and the sweep.
type AuctionService struct {
	auctions domain.AuctionRepository
	locks    *LockManager
	events   domain.EventPublisher
	log      logger.Logger
}

func NewAuctionService(
	auctions domain.AuctionRepository,
	locks *LockManager,
	events domain.EventPublisher,
	log logger.Logger,
) *AuctionService {
	return &AuctionService{
		auctions: auctions,
		locks:    locks,
		events:   events,
		log:      log,
	}
}

func (s *AuctionService) CreateAuction(ctx context.Context, sellerID string,
	startingPrice float64, reservePrice *float64,
	startTime, endTime time.Time, scheduled bool) (*domain.Auction, error) {

	if !endTime.After(startTime) {
		return nil, ErrInvalidWindow
	}

	now := time.Now()
	status := domain.StatusDraft
	if scheduled {
		status = domain.StatusScheduled
	}

	auction := &domain.Auction{
		ID:            uuid.NewString(),
		SellerID:      sellerID,
		StartingPrice: startingPrice,
		ReservePrice:  reservePrice,
		StartTime:     startTime,
		EndTime:       endTime,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, err
	}

	s.log.Info("Auction created", "auction_id", auction.ID, "status", auction.Status.String())
	return auction, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return s.auctions.GetByID(ctx, auctionID)
}

// CancelAuction moves a Draft or Scheduled auction to Cancelled.
// Active, Completed and Cancelled auctions cannot be cancelled.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	var cancelled *domain.Auction

	err := s.locks.WithLock(ctx, AuctionLockKey(auctionID), func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return err
		}

		if !auction.Status.CanTransitionTo(domain.StatusCancelled) {
			return domain.ErrCannotCancel
		}

		now := time.Now()
		auction.Status = domain.StatusCancelled
		auction.UpdatedAt = now

		if err := s.auctions.Save(ctx, auction); err != nil {
			return err
		}

		cancelled = auction

		event := &domain.AuctionEvent{
			Type:      domain.EventStatusChanged,
			AuctionID: auction.ID,
			Timestamp: now,
			NewStatus: auction.Status.String(),
			StartTime: &auction.StartTime,
			EndTime:   &auction.EndTime,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Error("Failed to publish cancel event", "auction_id", auction.ID, "error", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
