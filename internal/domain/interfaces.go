package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	Create(ctx context.Context, auction *Auction) error
	GetByID(ctx context.Context, auctionID string) (*Auction, error)
	GetByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	Save(ctx context.Context, auction *Auction) error
}

type BidLedger interface {
	Append(ctx context.Context, bid *Bid) error
	GetHighest(ctx context.Context, auctionID string) (*Bid, error)
	GetByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
	CountByAuction(ctx context.Context, auctionID string) (int, error)
}

// BidCommitter persists an accepted bid and the matching auction
// price/leader update so neither is ever visible without the other.
type BidCommitter interface {
	CommitBid(ctx context.Context, auction *Auction, bid *Bid) error
}

// CoordinationStore exposes the two primitives the lock protocol
// needs: conditional set with expiry and value-matched delete.
type CoordinationStore interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DeleteIfMatches(ctx context.Context, key, value string) (bool, error)
}

// Event interfaces
type EventPublisher interface {
	Publish(ctx context.Context, event *AuctionEvent) error
}

type EventHandler func(event *AuctionEvent) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	JoinRoom(userID, auctionID string, conn WebSocketConnection) error
	LeaveRoom(userID, auctionID string) error
	RoomConnections(auctionID string) []WebSocketConnection
	UserConnections(userID string) []WebSocketConnection
	BroadcastToRoom(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseRoom(auctionID string) error
}
