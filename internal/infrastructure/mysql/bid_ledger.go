package mysql

import (
	"context"
	"database/sql"
	"errors"

	"auction-house/internal/domain"
)

// MySQLBidLedger is the append-only bid store. CommitBid additionally
// writes the auction's new price and leader in the same transaction,
// so a reader never sees one without the other.
type MySQLBidLedger struct {
	db *sql.DB
}

func NewMySQLBidLedger(db *sql.DB) *MySQLBidLedger {
	return &MySQLBidLedger{db: db}
}

func (r *MySQLBidLedger) Append(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt)
	return err
}

func (r *MySQLBidLedger) GetHighest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoBids
		}
		return nil, err
	}

	return &bid, nil
}

func (r *MySQLBidLedger) GetByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID,
			&bid.Amount, &bid.CreatedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}

func (r *MySQLBidLedger) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&count)
	return count, err
}

func (r *MySQLBidLedger) CommitBid(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_price = ?, current_leader_id = ?, updated_at = ?
        WHERE id = ?
    `, nullFloat(auction.CurrentPrice), nullString(auction.CurrentLeaderID),
		auction.UpdatedAt, auction.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
