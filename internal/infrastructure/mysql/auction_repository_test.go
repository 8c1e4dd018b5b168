package mysql

import (
	"context"
	"testing"
	"time"

	"auction-core/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuctionRepoMock(t *testing.T) (*MySQLAuctionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAuctionRepository(db), mock
}

func auctionColumns() []string {
	return []string{"id", "product_id", "owner_id", "start_price", "current_price",
		"end_time", "status", "created_at", "updated_at"}
}

func TestGetAuctionMapsNoRowsToNotFound(t *testing.T) {
	repo, mock := newAuctionRepoMock(t)

	mock.ExpectQuery("FROM auctions WHERE id = ").
		WithArgs("auction-missing").
		WillReturnRows(sqlmock.NewRows(auctionColumns()))

	_, err := repo.GetAuction(context.Background(), "auction-missing")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuctionScansNullCurrentPrice(t *testing.T) {
	repo, mock := newAuctionRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("FROM auctions WHERE id = ").
		WithArgs("auction-1").
		WillReturnRows(sqlmock.NewRows(auctionColumns()).
			AddRow("auction-1", "product-1", "seller-1", int64(100), nil,
				now.Add(time.Hour), int(domain.AuctionOpen), now, now))

	auction, err := repo.GetAuction(context.Background(), "auction-1")
	require.NoError(t, err)
	assert.Nil(t, auction.CurrentPrice)
	assert.Equal(t, domain.AuctionOpen, auction.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuctionScansCurrentPriceValue(t *testing.T) {
	repo, mock := newAuctionRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("FROM auctions WHERE id = ").
		WithArgs("auction-1").
		WillReturnRows(sqlmock.NewRows(auctionColumns()).
			AddRow("auction-1", "product-1", "seller-1", int64(100), int64(250),
				now.Add(time.Hour), int(domain.AuctionWon), now, now))

	auction, err := repo.GetAuction(context.Background(), "auction-1")
	require.NoError(t, err)
	require.NotNil(t, auction.CurrentPrice)
	assert.Equal(t, int64(250), *auction.CurrentPrice)
	assert.Equal(t, domain.AuctionWon, auction.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenAuctionsEndingAfterFiltersByStatus(t *testing.T) {
	repo, mock := newAuctionRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("FROM auctions WHERE status = \\? AND end_time > \\?").
		WithArgs(int(domain.AuctionOpen), now).
		WillReturnRows(sqlmock.NewRows(auctionColumns()).
			AddRow("auction-1", "product-1", "seller-1", int64(100), nil,
				now.Add(time.Hour), int(domain.AuctionOpen), now, now).
			AddRow("auction-2", "product-2", "seller-2", int64(500), int64(700),
				now.Add(2*time.Hour), int(domain.AuctionOpen), now, now))

	auctions, err := repo.GetOpenAuctionsEndingAfter(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, auctions, 2)
	assert.Equal(t, "auction-2", auctions[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
