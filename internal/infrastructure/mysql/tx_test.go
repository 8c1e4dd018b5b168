package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxManagerMock(t *testing.T) (*TxManager, *MySQLBalanceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTxManager(db), NewMySQLBalanceRepository(db), mock
}

func TestWithinTxCommitsAllStatements(t *testing.T) {
	manager, repo, mock := newTxManagerMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET point_balance = point_balance - \\?").
		WithArgs(int64(150), "bidder-x", int64(150)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET point_balance = point_balance \\+ \\? WHERE id = \\?").
		WithArgs(int64(150), "bidder-x").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Reserve(ctx, "bidder-x", 150); err != nil {
			return err
		}
		return repo.Release(ctx, "bidder-x", 150)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	manager, repo, mock := newTxManagerMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET point_balance = point_balance - \\?").
		WithArgs(int64(150), "bidder-x", int64(150)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("insert failed")
	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Reserve(ctx, "bidder-x", 150); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxNestedCallJoinsOuterTransaction(t *testing.T) {
	manager, repo, mock := newTxManagerMock(t)

	// One Begin, one Commit: the inner unit of work rides the outer one.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET point_balance = point_balance \\+ \\? WHERE id = \\?").
		WithArgs(int64(150), "bidder-x").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		return manager.WithinTx(ctx, func(ctx context.Context) error {
			return repo.Release(ctx, "bidder-x", 150)
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
