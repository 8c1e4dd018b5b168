package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-core/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, product_id, owner_id, start_price, current_price, end_time, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := queryer(ctx, r.db).ExecContext(ctx, query,
		auction.ID, auction.ProductID, auction.OwnerID, auction.StartPrice,
		auction.CurrentPrice, auction.EndTime, int(auction.Status),
		auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `
        SELECT id, product_id, owner_id, start_price, current_price, end_time, status, created_at, updated_at
        FROM auctions WHERE id = ?
    `

	auction, err := scanAuction(queryer(ctx, r.db).QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query, int(status), time.Now(), auctionID)
	return err
}

func (r *MySQLAuctionRepository) UpdateAuctionPrice(ctx context.Context, auctionID string, price *int64) error {
	query := `UPDATE auctions SET current_price = ?, updated_at = ? WHERE id = ?`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query, price, time.Now(), auctionID)
	return err
}

func (r *MySQLAuctionRepository) GetOpenAuctionsEndingAfter(ctx context.Context, t time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT id, product_id, owner_id, start_price, current_price, end_time, status, created_at, updated_at
        FROM auctions WHERE status = ? AND end_time > ?
    `

	rows, err := queryer(ctx, r.db).QueryContext(ctx, query, int(domain.AuctionOpen), t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuctions(rows)
}

func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context, page, size int) ([]*domain.Auction, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM auctions WHERE status != ?`
	if err := queryer(ctx, r.db).QueryRowContext(ctx, countQuery, int(domain.AuctionDeleted)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, product_id, owner_id, start_price, current_price, end_time, status, created_at, updated_at
        FROM auctions WHERE status != ?
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `

	rows, err := queryer(ctx, r.db).QueryContext(ctx, query, int(domain.AuctionDeleted), size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	auctions, err := collectAuctions(rows)
	if err != nil {
		return nil, 0, err
	}

	return auctions, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var currentPrice sql.NullInt64
	var status int

	err := row.Scan(&auction.ID, &auction.ProductID, &auction.OwnerID,
		&auction.StartPrice, &currentPrice, &auction.EndTime,
		&status, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if currentPrice.Valid {
		auction.CurrentPrice = &currentPrice.Int64
	}
	auction.Status = domain.AuctionStatus(status)
	return &auction, nil
}

func collectAuctions(rows *sql.Rows) ([]*domain.Auction, error) {
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
