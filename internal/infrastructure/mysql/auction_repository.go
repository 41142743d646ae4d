package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-engine/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

const auctionColumns = `id, machine_id, seller_id, starting_price, minimum_increment,
        current_bid, current_bid_by, start_time, end_time, active,
        winner_id, winning_amount, version, created_at, updated_at`

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.MachineID, auction.SellerID,
		auction.StartingPrice, auction.MinimumIncrement,
		auction.CurrentBid, auction.CurrentBidBy,
		auction.StartTime, auction.EndTime, auction.Active,
		auction.WinnerID, auction.WinningAmount,
		auction.Version, auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
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

func (r *MySQLAuctionRepository) GetActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE active = 1`

	rows, err := r.db.QueryContext(ctx, query)
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

// SaveAuction writes every mutable field with a compare-and-swap on the
// version column. Zero rows affected means another writer won the race.
func (r *MySQLAuctionRepository) SaveAuction(ctx context.Context, auction *domain.Auction) error {
	result, err := r.db.ExecContext(ctx, saveAuctionQuery, saveAuctionArgs(auction)...)
	if err != nil {
		return err
	}
	return bumpVersion(auction, result)
}

// SaveBidAndAuction commits the ledger append and the auction update in one
// transaction, with the same CAS. Either both land or neither does.
func (r *MySQLAuctionRepository) SaveBidAndAuction(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, saveAuctionQuery, saveAuctionArgs(auction)...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at)
        VALUES (?, ?, ?, ?, ?)
    `, bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	auction.Version++
	return nil
}

const saveAuctionQuery = `
    UPDATE auctions
    SET current_bid = ?, current_bid_by = ?, end_time = ?, active = ?,
        winner_id = ?, winning_amount = ?, version = version + 1, updated_at = ?
    WHERE id = ? AND version = ?
`

func saveAuctionArgs(auction *domain.Auction) []interface{} {
	return []interface{}{
		auction.CurrentBid, auction.CurrentBidBy, auction.EndTime, auction.Active,
		auction.WinnerID, auction.WinningAmount, auction.UpdatedAt,
		auction.ID, auction.Version,
	}
}

func bumpVersion(auction *domain.Auction, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}
	auction.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var currentBidBy, winnerID sql.NullString
	var startTime, endTime, createdAt, updatedAt time.Time

	err := row.Scan(
		&auction.ID, &auction.MachineID, &auction.SellerID,
		&auction.StartingPrice, &auction.MinimumIncrement,
		&auction.CurrentBid, &currentBidBy,
		&startTime, &endTime, &auction.Active,
		&winnerID, &auction.WinningAmount,
		&auction.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	auction.CurrentBidBy = currentBidBy.String
	auction.WinnerID = winnerID.String
	auction.StartTime = startTime
	auction.EndTime = endTime
	auction.CreatedAt = createdAt
	auction.UpdatedAt = updatedAt
	return &auction, nil
}
