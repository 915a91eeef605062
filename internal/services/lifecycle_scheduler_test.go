package services

import (
	"context"
	"testing"
	"time"

	"auction-house/internal/domain"

	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	repo      *memAuctionRepo
	ledger    *memLedger
	store     *memStore
	pub       *capturePublisher
	scheduler *LifecycleScheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	repo := newMemAuctionRepo()
	ledger := newMemLedger(repo)
	store := newMemStore()
	pub := &capturePublisher{}
	locks := NewLockManager(store, time.Second, 3, time.Millisecond, nopLogger{})
	scheduler := NewLifecycleScheduler(repo, ledger, locks, pub, nil,
		"test-instance", time.Second, nopLogger{})

	return &schedulerFixture{repo: repo, ledger: ledger, store: store, pub: pub, scheduler: scheduler}
}

func scheduledAuction(id string, start, end time.Time) *domain.Auction {
	return &domain.Auction{
		ID:            id,
		SellerID:      "seller",
		StartingPrice: 10000,
		StartTime:     start,
		EndTime:       end,
		Status:        domain.StatusScheduled,
	}
}

func TestSweep_ActivatesDueAuctions(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.repo.put(scheduledAuction("due", now.Add(-time.Minute), now.Add(time.Hour)))
	f.repo.put(scheduledAuction("future", now.Add(time.Hour), now.Add(2*time.Hour)))

	f.scheduler.Sweep(ctx, now)

	due, err := f.repo.GetByID(ctx, "due")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, due.Status)

	future, err := f.repo.GetByID(ctx, "future")
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, future.Status)

	changed := f.pub.ofType(domain.EventStatusChanged)
	require.Len(t, changed, 1)
	require.Equal(t, "due", changed[0].AuctionID)
	require.Equal(t, "active", changed[0].NewStatus)
	require.NotNil(t, changed[0].StartTime)
	require.NotNil(t, changed[0].EndTime)
}

func TestSweep_MissedWindowStaysScheduled(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.repo.put(scheduledAuction("missed", now.Add(-2*time.Hour), now.Add(-time.Hour)))

	f.scheduler.Sweep(ctx, now)

	missed, err := f.repo.GetByID(ctx, "missed")
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, missed.Status)
	require.Empty(t, f.pub.all())
}

func TestSweep_CompletesWithWinner(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	price := 10500.0
	leader := "bidderA"
	auction := activeAuction("a1")
	auction.EndTime = now.Add(-time.Minute)
	auction.CurrentPrice = &price
	auction.CurrentLeaderID = &leader
	f.repo.put(auction)

	f.scheduler.Sweep(ctx, now)

	saved, err := f.repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, saved.Status)

	ended := f.pub.ofType(domain.EventAuctionEnded)
	require.Len(t, ended, 1)
	require.NotNil(t, ended[0].WinnerID)
	require.Equal(t, "bidderA", *ended[0].WinnerID)
	require.NotNil(t, ended[0].FinalPrice)
	require.Equal(t, 10500.0, *ended[0].FinalPrice)
}

func TestSweep_ZeroBidAuctionCompletesWithoutWinner(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	auction := activeAuction("a1")
	auction.EndTime = now.Add(-time.Minute)
	f.repo.put(auction)

	f.scheduler.Sweep(ctx, now)

	saved, err := f.repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, saved.Status)

	ended := f.pub.ofType(domain.EventAuctionEnded)
	require.Len(t, ended, 1)
	require.Nil(t, ended[0].WinnerID)
	require.Nil(t, ended[0].FinalPrice)
}

func TestSweep_Idempotent(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.repo.put(scheduledAuction("s1", now.Add(-time.Minute), now.Add(time.Hour)))
	ended := activeAuction("e1")
	ended.EndTime = now.Add(-time.Minute)
	f.repo.put(ended)

	f.scheduler.Sweep(ctx, now)
	first := snapshotStatuses(t, f.repo)

	f.scheduler.Sweep(ctx, now)
	second := snapshotStatuses(t, f.repo)

	require.Equal(t, first, second)

	// The terminal transition fired exactly once; countdown ticks are
	// the only events the second sweep may add.
	require.Len(t, f.pub.ofType(domain.EventAuctionEnded), 1)
	require.Len(t, f.pub.ofType(domain.EventStatusChanged), 1)
}

func snapshotStatuses(t *testing.T, repo *memAuctionRepo) map[string]domain.AuctionStatus {
	t.Helper()
	statuses := make(map[string]domain.AuctionStatus)
	for _, status := range []domain.AuctionStatus{
		domain.StatusDraft, domain.StatusScheduled, domain.StatusActive,
		domain.StatusCompleted, domain.StatusCancelled,
	} {
		auctions, err := repo.GetByStatus(context.Background(), status)
		require.NoError(t, err)
		for _, auction := range auctions {
			statuses[auction.ID] = auction.Status
		}
	}
	return statuses
}

func TestSweep_EmitsCountdowns(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	price := 10500.0
	auction := activeAuction("a1")
	auction.EndTime = now.Add(30 * time.Second)
	auction.CurrentPrice = &price
	f.repo.put(auction)

	require.NoError(t, f.ledger.Append(ctx, &domain.Bid{ID: "b1", AuctionID: "a1", BidderID: "x", Amount: 10200}))
	require.NoError(t, f.ledger.Append(ctx, &domain.Bid{ID: "b2", AuctionID: "a1", BidderID: "y", Amount: 10500}))

	f.scheduler.Sweep(ctx, now)

	ticks := f.pub.ofType(domain.EventCountdown)
	require.Len(t, ticks, 1)
	require.Equal(t, int64(30), ticks[0].RemainingSeconds)
	require.NotNil(t, ticks[0].CurrentPrice)
	require.Equal(t, 10500.0, *ticks[0].CurrentPrice)
	require.Equal(t, 2, ticks[0].TotalBids)

	// Countdown never mutates state.
	saved, err := f.repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, saved.Status)
}

func TestSweep_ZeroBidCountdownHasNoPrice(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	auction := activeAuction("a1")
	auction.EndTime = now.Add(30 * time.Second)
	f.repo.put(auction)

	f.scheduler.Sweep(ctx, now)

	// Until the first bid, the tick reports no price, same as the
	// auction row and the auction-ended event.
	ticks := f.pub.ofType(domain.EventCountdown)
	require.Len(t, ticks, 1)
	require.Nil(t, ticks[0].CurrentPrice)
	require.Equal(t, 0, ticks[0].TotalBids)
}

func TestSweep_PartialFailureIsolation(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	broken := activeAuction("broken")
	broken.EndTime = now.Add(-time.Minute)
	f.repo.put(broken)

	healthy := activeAuction("healthy")
	healthy.EndTime = now.Add(-time.Minute)
	f.repo.put(healthy)

	f.repo.failSaveID = "broken"
	f.scheduler.Sweep(ctx, now)

	saved, err := f.repo.GetByID(ctx, "healthy")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, saved.Status)

	stuck, err := f.repo.GetByID(ctx, "broken")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, stuck.Status)

	// Precondition still holds, so the next sweep picks it up.
	f.repo.failSaveID = ""
	f.scheduler.Sweep(ctx, now)

	recovered, err := f.repo.GetByID(ctx, "broken")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, recovered.Status)
}

func TestSweep_ContendedAuctionDeferred(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now()

	auction := activeAuction("a1")
	auction.EndTime = now.Add(-time.Minute)
	f.repo.put(auction)

	// A bid in flight holds the lock; the sweep leaves the auction for
	// the next tick instead of racing.
	ok, err := f.store.SetIfAbsent(ctx, AuctionLockKey("a1"), "bid-in-flight", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	f.scheduler.Sweep(ctx, now)

	saved, err := f.repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, saved.Status)
	require.Empty(t, f.pub.ofType(domain.EventAuctionEnded))

	_, err = f.store.DeleteIfMatches(ctx, AuctionLockKey("a1"), "bid-in-flight")
	require.NoError(t, err)

	f.scheduler.Sweep(ctx, now)

	saved, err = f.repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, saved.Status)
}
