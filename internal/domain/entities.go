package domain

import (
	"time"
)

type AuctionStatus int

const (
	StatusDraft AuctionStatus = iota
	StatusScheduled
	StatusActive
	StatusCompleted
	StatusCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusScheduled:
		return "scheduled"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CanTransitionTo encodes the forward-only lifecycle. Completed and
// Cancelled are terminal.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusScheduled || next == StatusCancelled
	case StatusScheduled:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted
	default:
		return false
	}
}

func (s AuctionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Auction struct {
	ID              string
	SellerID        string
	StartingPrice   float64
	ReservePrice    *float64
	CurrentPrice    *float64
	CurrentLeaderID *string
	StartTime       time.Time
	EndTime         time.Time
	Status          AuctionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Floor is the amount a new bid must strictly exceed: the current price
// once a bid exists, the starting price otherwise.
func (a *Auction) Floor() float64 {
	if a.CurrentPrice != nil && *a.CurrentPrice > a.StartingPrice {
		return *a.CurrentPrice
	}
	return a.StartingPrice
}

// InWindow reports whether now falls within [StartTime, EndTime).
func (a *Auction) InWindow(now time.Time) bool {
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}

type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    float64
	CreatedAt time.Time
}

type EventType string

const (
	EventBidPlaced     EventType = "bid_placed"
	EventStatusChanged EventType = "status_changed"
	EventCountdown     EventType = "countdown"
	EventAuctionEnded  EventType = "auction_ended"
)

// AuctionEvent is the envelope published for every lifecycle and bid
// event; only the fields relevant to the Type are set.
type AuctionEvent struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id"`
	Timestamp time.Time `json:"timestamp"`

	// bid_placed
	Amount           float64 `json:"amount,omitempty"`
	BidderID         string  `json:"bidder_id,omitempty"`
	PreviousLeaderID string  `json:"previous_leader_id,omitempty"`
	TotalBids        int     `json:"total_bids,omitempty"`

	// status_changed
	NewStatus string     `json:"new_status,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// countdown
	RemainingSeconds int64    `json:"remaining_seconds,omitempty"`
	CurrentPrice     *float64 `json:"current_price,omitempty"`

	// auction_ended; absent means no accepted bid
	WinnerID   *string  `json:"winner_id,omitempty"`
	FinalPrice *float64 `json:"final_price,omitempty"`
}
