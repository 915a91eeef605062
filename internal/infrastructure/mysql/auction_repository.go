package mysql

import (
	"context"
	"database/sql"
	"errors"

	"auction-house/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

const auctionColumns = `id, seller_id, starting_price, reserve_price, current_price,
        current_leader_id, start_time, end_time, status, created_at, updated_at`

func (r *MySQLAuctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.SellerID, auction.StartingPrice,
		nullFloat(auction.ReservePrice), nullFloat(auction.CurrentPrice),
		nullString(auction.CurrentLeaderID),
		auction.StartTime, auction.EndTime, int(auction.Status),
		auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) GetByID(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) GetByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ?`

	rows, err := r.db.QueryContext(ctx, query, int(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
        SET starting_price = ?, reserve_price = ?, current_price = ?,
            current_leader_id = ?, start_time = ?, end_time = ?,
            status = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.StartingPrice, nullFloat(auction.ReservePrice),
		nullFloat(auction.CurrentPrice), nullString(auction.CurrentLeaderID),
		auction.StartTime, auction.EndTime,
		int(auction.Status), auction.UpdatedAt, auction.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int
	var reservePrice, currentPrice sql.NullFloat64
	var leaderID sql.NullString

	err := row.Scan(
		&auction.ID, &auction.SellerID, &auction.StartingPrice,
		&reservePrice, &currentPrice, &leaderID,
		&auction.StartTime, &auction.EndTime, &status,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if reservePrice.Valid {
		auction.ReservePrice = &reservePrice.Float64
	}
	if currentPrice.Valid {
		auction.CurrentPrice = &currentPrice.Float64
	}
	if leaderID.Valid {
		auction.CurrentLeaderID = &leaderID.String
	}
	return &auction, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
