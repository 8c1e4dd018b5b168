package mysql

import (
	"context"
	"database/sql"

	"auction-core/internal/domain"
)

// MySQLBalanceRepository mutates user point balances. Every write is a single
// guarded UPDATE, so a balance can never be driven negative: a reservation
// that would overdraw matches zero rows and fails with
// ErrInsufficientBalance instead.
type MySQLBalanceRepository struct {
	db *sql.DB
}

func NewMySQLBalanceRepository(db *sql.DB) *MySQLBalanceRepository {
	return &MySQLBalanceRepository{db: db}
}

func (r *MySQLBalanceRepository) Reserve(ctx context.Context, userID string, amount int64) error {
	query := `UPDATE users SET point_balance = point_balance - ? WHERE id = ? AND point_balance >= ?`

	result, err := queryer(ctx, r.db).ExecContext(ctx, query, amount, userID, amount)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInsufficientBalance
	}

	return nil
}

func (r *MySQLBalanceRepository) ReleaseAndReserve(ctx context.Context, userID string, oldAmount, newAmount int64) error {
	query := `UPDATE users SET point_balance = point_balance + ? - ? WHERE id = ? AND point_balance + ? >= ?`

	result, err := queryer(ctx, r.db).ExecContext(ctx, query, oldAmount, newAmount, userID, oldAmount, newAmount)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInsufficientBalance
	}

	return nil
}

func (r *MySQLBalanceRepository) Release(ctx context.Context, userID string, amount int64) error {
	query := `UPDATE users SET point_balance = point_balance + ? WHERE id = ?`

	result, err := queryer(ctx, r.db).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// A refund with no matching row means the user vanished; do not
		// swallow it.
		return domain.ErrUserNotFound
	}

	return nil
}
