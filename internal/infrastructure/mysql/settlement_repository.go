package mysql

import (
	"context"
	"database/sql"

	"auction-core/internal/domain"
)

type MySQLSettlementRepository struct {
	db *sql.DB
}

func NewMySQLSettlementRepository(db *sql.DB) *MySQLSettlementRepository {
	return &MySQLSettlementRepository{db: db}
}

func (r *MySQLSettlementRepository) CreateEntry(ctx context.Context, entry *domain.SettlementEntry) error {
	query := `
        INSERT INTO settlement_outbox (id, auction_id, bid_id, status, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := queryer(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.AuctionID, entry.BidID, string(entry.Status), entry.CreatedAt)
	return err
}

func (r *MySQLSettlementRepository) GetPendingEntries(ctx context.Context, limit int) ([]*domain.SettlementEntry, error) {
	query := `
        SELECT id, auction_id, bid_id, status, created_at
        FROM settlement_outbox
        WHERE status = 'pending'
        ORDER BY created_at ASC
        LIMIT ?
    `

	rows, err := queryer(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.SettlementEntry
	for rows.Next() {
		var entry domain.SettlementEntry
		var status string

		err := rows.Scan(&entry.ID, &entry.AuctionID, &entry.BidID,
			&status, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}

		entry.Status = domain.SettlementStatus(status)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *MySQLSettlementRepository) MarkCompleted(ctx context.Context, entryID string) error {
	query := `UPDATE settlement_outbox SET status = 'completed' WHERE id = ?`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query, entryID)
	return err
}

func (r *MySQLSettlementRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
        INSERT INTO transactions (id, auction_id, bid_id, seller_id, buyer_id, price, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := queryer(ctx, r.db).ExecContext(ctx, query,
		tx.ID, tx.AuctionID, tx.BidID, tx.SellerID, tx.BuyerID, tx.Price, tx.CreatedAt)
	return err
}
