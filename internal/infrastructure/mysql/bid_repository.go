package mysql

import (
	"context"
	"database/sql"
	"errors"

	"auction-core/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, price, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := queryer(ctx, r.db).ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Price, int(bid.Status), bid.CreatedAt)
	return err
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, price, status, created_at
        FROM bids WHERE id = ?
    `

	bid, err := scanBid(queryer(ctx, r.db).QueryRowContext(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, err
	}

	return bid, nil
}

func (r *MySQLBidRepository) UpdateBidPrice(ctx context.Context, bidID string, price int64) error {
	query := `UPDATE bids SET price = ? WHERE id = ?`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query, price, bidID)
	return err
}

func (r *MySQLBidRepository) UpdateBidStatus(ctx context.Context, bidID string, status domain.BidStatus) error {
	query := `UPDATE bids SET status = ? WHERE id = ?`
	_, err := queryer(ctx, r.db).ExecContext(ctx, query, int(status), bidID)
	return err
}

// GetHighestActiveBid orders by price descending then creation time ascending,
// so true ties (which strict-greater admission should prevent) resolve to the
// earliest bid.
func (r *MySQLBidRepository) GetHighestActiveBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, price, status, created_at
        FROM bids WHERE auction_id = ? AND status = ?
        ORDER BY price DESC, created_at ASC
        LIMIT 1
    `

	bid, err := scanBid(queryer(ctx, r.db).QueryRowContext(ctx, query, auctionID, int(domain.BidActive)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return bid, nil
}

func (r *MySQLBidRepository) GetHighestActivePrice(ctx context.Context, auctionID string) (*int64, error) {
	query := `SELECT MAX(price) FROM bids WHERE auction_id = ? AND status = ?`

	var price sql.NullInt64
	err := queryer(ctx, r.db).QueryRowContext(ctx, query, auctionID, int(domain.BidActive)).Scan(&price)
	if err != nil {
		return nil, err
	}

	if !price.Valid {
		return nil, nil
	}
	return &price.Int64, nil
}

func (r *MySQLBidRepository) ListBidsByAuction(ctx context.Context, auctionID string, page, size int) ([]*domain.Bid, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM bids WHERE auction_id = ?`
	if err := queryer(ctx, r.db).QueryRowContext(ctx, countQuery, auctionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, auction_id, bidder_id, price, status, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY price DESC, created_at ASC
        LIMIT ? OFFSET ?
    `

	rows, err := queryer(ctx, r.db).QueryContext(ctx, query, auctionID, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bids, err := collectBids(rows)
	if err != nil {
		return nil, 0, err
	}

	return bids, total, nil
}

func (r *MySQLBidRepository) ListBidsByUser(ctx context.Context, userID string, page, size int) ([]*domain.Bid, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM bids WHERE bidder_id = ?`
	if err := queryer(ctx, r.db).QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, auction_id, bidder_id, price, status, created_at
        FROM bids WHERE bidder_id = ?
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `

	rows, err := queryer(ctx, r.db).QueryContext(ctx, query, userID, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bids, err := collectBids(rows)
	if err != nil {
		return nil, 0, err
	}

	return bids, total, nil
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var status int

	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID,
		&bid.Price, &status, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}

	bid.Status = domain.BidStatus(status)
	return &bid, nil
}

func collectBids(rows *sql.Rows) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}
