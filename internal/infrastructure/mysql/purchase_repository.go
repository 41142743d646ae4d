package mysql

import (
	"context"
	"database/sql"
	"errors"

	"auction-engine/internal/domain"

	mysqldriver "github.com/go-sql-driver/mysql"
)

const mysqlErrDuplicateEntry = 1062

type MySQLPurchaseIntentRepository struct {
	db *sql.DB
}

func NewMySQLPurchaseIntentRepository(db *sql.DB) *MySQLPurchaseIntentRepository {
	return &MySQLPurchaseIntentRepository{db: db}
}

// Create inserts the intent; the unique key on auction_id turns a
// duplicate into ErrIntentExists so the handoff can absorb races.
func (r *MySQLPurchaseIntentRepository) Create(ctx context.Context, intent *domain.PurchaseIntent) error {
	query := `
        INSERT INTO purchase_intents
            (id, auction_id, buyer_id, seller_id, machine_id, amount_cents, currency, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		intent.ID, intent.AuctionID, intent.BuyerID, intent.SellerID,
		intent.MachineID, intent.AmountCents, intent.Currency,
		string(intent.Status), intent.CreatedAt)
	if err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return domain.ErrIntentExists
		}
		return err
	}
	return nil
}

func (r *MySQLPurchaseIntentRepository) GetByAuction(ctx context.Context, auctionID string) (*domain.PurchaseIntent, error) {
	query := `
        SELECT id, auction_id, buyer_id, seller_id, machine_id, amount_cents, currency, status, created_at
        FROM purchase_intents WHERE auction_id = ?
    `

	var intent domain.PurchaseIntent
	var status string

	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&intent.ID, &intent.AuctionID, &intent.BuyerID, &intent.SellerID,
		&intent.MachineID, &intent.AmountCents, &intent.Currency,
		&status, &intent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, err
	}

	intent.Status = domain.PurchaseIntentStatus(status)
	return &intent, nil
}
