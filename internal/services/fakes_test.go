package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-house/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memStore is an in-memory coordination store with TTL semantics.
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]memEntry)}
}

func (s *memStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[key] = memEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (s *memStore) DeleteIfMatches(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !time.Now().Before(entry.expiresAt) || entry.value != value {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// memAuctionRepo copies records in and out, like a real store: callers
// never share pointers with it.
type memAuctionRepo struct {
	mu         sync.Mutex
	auctions   map[string]domain.Auction
	failSaveID string
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: make(map[string]domain.Auction)}
}

func (r *memAuctionRepo) put(auction *domain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.ID] = *auction
}

func (r *memAuctionRepo) Create(_ context.Context, auction *domain.Auction) error {
	r.put(auction)
	return nil
}

func (r *memAuctionRepo) GetByID(_ context.Context, auctionID string) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	copied := auction
	return &copied, nil
}

func (r *memAuctionRepo) GetByStatus(_ context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*domain.Auction
	for _, auction := range r.auctions {
		if auction.Status == status {
			copied := auction
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memAuctionRepo) Save(_ context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failSaveID != "" && auction.ID == r.failSaveID {
		return errors.New("save failed")
	}
	r.auctions[auction.ID] = *auction
	return nil
}

// memLedger implements both BidLedger and BidCommitter; CommitBid
// applies the auction update to the repo together with the append.
type memLedger struct {
	mu         sync.Mutex
	bids       []domain.Bid
	repo       *memAuctionRepo
	failCommit bool
}

func newMemLedger(repo *memAuctionRepo) *memLedger {
	return &memLedger{repo: repo}
}

func (l *memLedger) Append(_ context.Context, bid *domain.Bid) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bids = append(l.bids, *bid)
	return nil
}

func (l *memLedger) GetHighest(_ context.Context, auctionID string) (*domain.Bid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var highest *domain.Bid
	for i := range l.bids {
		bid := l.bids[i]
		if bid.AuctionID != auctionID {
			continue
		}
		if highest == nil || bid.Amount > highest.Amount {
			copied := bid
			highest = &copied
		}
	}
	if highest == nil {
		return nil, domain.ErrNoBids
	}
	return highest, nil
}

func (l *memLedger) GetByAuction(_ context.Context, auctionID string) ([]*domain.Bid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []*domain.Bid
	for i := range l.bids {
		if l.bids[i].AuctionID == auctionID {
			copied := l.bids[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (l *memLedger) CountByAuction(_ context.Context, auctionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for i := range l.bids {
		if l.bids[i].AuctionID == auctionID {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) CommitBid(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	l.mu.Lock()
	if l.failCommit {
		l.mu.Unlock()
		return errors.New("commit failed")
	}
	l.bids = append(l.bids, *bid)
	l.mu.Unlock()

	return l.repo.Save(ctx, auction)
}

// slowReleaseStore stalls the first release long enough for the lock
// to expire underneath the holder.
type slowReleaseStore struct {
	*memStore
	delay time.Duration
	once  sync.Once
}

func (s *slowReleaseStore) DeleteIfMatches(ctx context.Context, key, value string) (bool, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		time.Sleep(s.delay)
	}
	return s.memStore.DeleteIfMatches(ctx, key, value)
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.AuctionEvent
}

func (p *capturePublisher) Publish(_ context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *capturePublisher) all() []domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AuctionEvent(nil), p.events...)
}

func (p *capturePublisher) ofType(t domain.EventType) []domain.AuctionEvent {
	var result []domain.AuctionEvent
	for _, event := range p.all() {
		if event.Type == t {
			result = append(result, event)
		}
	}
	return result
}

// fakeRooms records fan-out calls for relay tests.
type fakeRooms struct {
	mu         sync.Mutex
	notified   map[string][]interface{}
	broadcasts map[string][]interface{}
	closed     []string
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{
		notified:   make(map[string][]interface{}),
		broadcasts: make(map[string][]interface{}),
	}
}

func (f *fakeRooms) JoinRoom(string, string, domain.WebSocketConnection) error { return nil }
func (f *fakeRooms) LeaveRoom(string, string) error                            { return nil }
func (f *fakeRooms) RoomConnections(string) []domain.WebSocketConnection       { return nil }
func (f *fakeRooms) UserConnections(string) []domain.WebSocketConnection       { return nil }

func (f *fakeRooms) BroadcastToRoom(auctionID string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts[auctionID] = append(f.broadcasts[auctionID], message)
	return nil
}

func (f *fakeRooms) NotifyUser(userID string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified[userID] = append(f.notified[userID], message)
	return nil
}

func (f *fakeRooms) CloseRoom(auctionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, auctionID)
	return nil
}
