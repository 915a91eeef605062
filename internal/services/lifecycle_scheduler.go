package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"

	"github.com/robfig/cron/v3"
)

// LifecycleScheduler is the recurring sweep that advances auctions
// through time-driven states and emits countdown ticks. The sweep is
// idempotent: every run re-derives the due transitions from persisted
// state, so a crashed run is simply finished by the next one.
type LifecycleScheduler struct {
	auctions   domain.AuctionRepository
	ledger     domain.BidLedger
	locks      *LockManager
	events     domain.EventPublisher
	election   domain.LeaderElection
	instanceID string
	interval   time.Duration
	cron       *cron.Cron
	log        logger.Logger
}

func NewLifecycleScheduler(
	auctions domain.AuctionRepository,
	ledger domain.BidLedger,
	locks *LockManager,
	events domain.EventPublisher,
	election domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *LifecycleScheduler {
	return &LifecycleScheduler{
		auctions:   auctions,
		ledger:     ledger,
		locks:      locks,
		events:     events,
		election:   election,
		instanceID: instanceID,
		interval:   interval,
		cron:       cron.New(cron.WithSeconds()),
		log:        log,
	}
}

func (s *LifecycleScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lifecycle scheduler", "interval", s.interval.String())

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		// Only the leader sweeps; followers idle until they win election.
		if s.election != nil {
			isLeader, err := s.election.IsLeader(ctx, s.instanceID)
			if err != nil {
				s.log.Error("Failed to check leadership", "error", err)
				return
			}
			if !isLeader {
				return
			}
		}
		s.Sweep(ctx, time.Now())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *LifecycleScheduler) Stop() error {
	s.log.Info("Stopping lifecycle scheduler")
	s.cron.Stop()
	return nil
}

// Sweep runs the three phases of one tick: promote due Scheduled
// auctions, close due Active auctions, and emit countdowns for the
// rest. Each phase isolates per-auction failures.
func (s *LifecycleScheduler) Sweep(ctx context.Context, now time.Time) {
	s.activateDue(ctx, now)
	s.completeDue(ctx, now)
	s.emitCountdowns(ctx, now)
}

func (s *LifecycleScheduler) activateDue(ctx context.Context, now time.Time) {
	scheduled, err := s.auctions.GetByStatus(ctx, domain.StatusScheduled)
	if err != nil {
		s.log.Error("Failed to fetch scheduled auctions", "error", err)
		return
	}

	for _, auction := range scheduled {
		if now.Before(auction.StartTime) {
			continue
		}
		if !now.Before(auction.EndTime) {
			s.log.Warn("Auction missed its whole window",
				"auction_id", auction.ID, "end_time", auction.EndTime)
			continue
		}

		if err := s.activate(ctx, auction.ID, now); err != nil {
			s.logTransitionFailure("activate", auction.ID, err)
		}
	}
}

func (s *LifecycleScheduler) activate(ctx context.Context, auctionID string, now time.Time) error {
	return s.locks.WithLock(ctx, AuctionLockKey(auctionID), func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return err
		}
		// Already promoted by an earlier sweep; nothing to do.
		if auction.Status != domain.StatusScheduled {
			return nil
		}

		auction.Status = domain.StatusActive
		auction.UpdatedAt = now

		if err := s.auctions.Save(ctx, auction); err != nil {
			return err
		}

		s.log.Info("Auction activated", "auction_id", auction.ID)

		s.publish(ctx, &domain.AuctionEvent{
			Type:      domain.EventStatusChanged,
			AuctionID: auction.ID,
			Timestamp: now,
			NewStatus: auction.Status.String(),
			StartTime: &auction.StartTime,
			EndTime:   &auction.EndTime,
		})
		return nil
	})
}

func (s *LifecycleScheduler) completeDue(ctx context.Context, now time.Time) {
	active, err := s.auctions.GetByStatus(ctx, domain.StatusActive)
	if err != nil {
		s.log.Error("Failed to fetch active auctions", "error", err)
		return
	}

	for _, auction := range active {
		if now.Before(auction.EndTime) {
			continue
		}

		if err := s.complete(ctx, auction.ID, now); err != nil {
			s.logTransitionFailure("complete", auction.ID, err)
		}
	}
}

func (s *LifecycleScheduler) complete(ctx context.Context, auctionID string, now time.Time) error {
	return s.locks.WithLock(ctx, AuctionLockKey(auctionID), func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return err
		}
		// Re-check under the lock: a previous sweep may have closed it,
		// and a bid committed while we waited is reflected here.
		if auction.Status != domain.StatusActive {
			return nil
		}
		if now.Before(auction.EndTime) {
			return nil
		}

		auction.Status = domain.StatusCompleted
		auction.UpdatedAt = now

		if err := s.auctions.Save(ctx, auction); err != nil {
			return err
		}

		s.log.Info("Auction completed", "auction_id", auction.ID,
			"has_winner", auction.CurrentLeaderID != nil)

		// Zero-bid auctions end with no winner and no final price.
		s.publish(ctx, &domain.AuctionEvent{
			Type:       domain.EventAuctionEnded,
			AuctionID:  auction.ID,
			Timestamp:  now,
			WinnerID:   auction.CurrentLeaderID,
			FinalPrice: auction.CurrentPrice,
		})
		return nil
	})
}

// emitCountdowns publishes a purely informational tick for each auction
// still running. No lock is taken; a slightly stale price is fine here.
func (s *LifecycleScheduler) emitCountdowns(ctx context.Context, now time.Time) {
	active, err := s.auctions.GetByStatus(ctx, domain.StatusActive)
	if err != nil {
		s.log.Error("Failed to fetch active auctions", "error", err)
		return
	}

	for _, auction := range active {
		if !auction.EndTime.After(now) {
			continue
		}

		totalBids, err := s.ledger.CountByAuction(ctx, auction.ID)
		if err != nil {
			s.log.Error("Failed to count bids", "auction_id", auction.ID, "error", err)
			continue
		}

		// CurrentPrice stays null until the first bid, matching the
		// auction row and the auction-ended event.
		s.publish(ctx, &domain.AuctionEvent{
			Type:             domain.EventCountdown,
			AuctionID:        auction.ID,
			Timestamp:        now,
			RemainingSeconds: int64(auction.EndTime.Sub(now).Seconds()),
			CurrentPrice:     auction.CurrentPrice,
			TotalBids:        totalBids,
		})
	}
}

func (s *LifecycleScheduler) publish(ctx context.Context, event *domain.AuctionEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error("Failed to publish event",
			"type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}

func (s *LifecycleScheduler) logTransitionFailure(op, auctionID string, err error) {
	// Contention means a bid or cancel holds the lock right now; the
	// transition's precondition still holds, so the next sweep gets it.
	if errors.Is(err, domain.ErrLockContended) {
		s.log.Debug("Transition deferred, lock contended", "op", op, "auction_id", auctionID)
		return
	}
	s.log.Error("Failed to transition auction", "op", op, "auction_id", auctionID, "error", err)
}
