package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"payverify/dto/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var transactionColumns = []string{"id", "payment_method", "status_code", "user_mdn", "amount", "currency", "item_name", "verified_at", "created_at"}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transactions" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(transactionColumns).
			AddRow("tx-1", "mtn_momo", model.StatusCodeCompleted, "670000001", 15000, "XAF", "Tresses", nil, created))

	tx, err := repo.GetByID(context.Background(), "tx-1")
	require.NoError(t, err)
	require.Equal(t, "mtn_momo", tx.PaymentMethod)
	require.Equal(t, uint(15000), tx.Amount)
	require.Equal(t, "success", tx.Status())
	require.Nil(t, tx.VerifiedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transactions" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(transactionColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_UpdateStatus(t *testing.T) {
	var tests = []struct {
		name     string
		affected int64
		expected bool
	}{
		{name: "open transaction moves", affected: 1, expected: true},
		{name: "settled transaction stays", affected: 0, expected: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewTransactionRepository(db)

			mock.ExpectExec(`UPDATE "transactions" SET .*"status_code"=.* WHERE id = \$\d+ AND status_code IN \(\$\d+,\$\d+\)`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			changed, err := repo.MarkCompleted(context.Background(), "tx-1", "prov-9")
			require.NoError(t, err)
			require.Equal(t, tt.expected, changed)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectExec(`INSERT INTO "transactions"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &model.Transactions{ID: "tx-1", PaymentMethod: "mtn_momo", ItemName: "Pack"})
	require.ErrorIs(t, err, ErrDuplicateTransaction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_MarkFailedKeepsReference(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectExec(`UPDATE "transactions" SET "fail_reason"=\$1,"reference_id"=\$2,"status_code"=\$3,.* WHERE id = \$\d+ AND status_code IN`).
		WithArgs("payer declined", "prov-9", model.StatusCodeFailed, sqlmock.AnyArg(), sqlmock.AnyArg(), "tx-1", model.StatusCodePending, model.StatusCodeWaiting).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.MarkFailed(context.Background(), "tx-1", "prov-9", "payer declined")
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_MarkVerifiedOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	pattern := `UPDATE "transactions" SET "verified_at"=.* WHERE id = \$\d+ AND status_code = \$\d+ AND verified_at IS NULL`
	mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkVerified(context.Background(), "tx-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := repo.MarkVerified(context.Background(), "tx-1")
	require.NoError(t, err)
	require.False(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE status_code IN \(\$1,\$2\) AND created_at < \$3 ORDER BY created_at asc LIMIT`).
		WillReturnRows(sqlmock.NewRows(transactionColumns).
			AddRow("tx-1", "orange_money", model.StatusCodeWaiting, "690000001", 5000, "XAF", "Coupe", nil, created))

	txs, err := repo.ListStale(context.Background(), created.Add(time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "tx-1", txs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE status_code IN \(\$1,\$2\) ORDER BY created_at asc LIMIT`).
		WillReturnRows(sqlmock.NewRows(transactionColumns).
			AddRow("tx-1", "orange_money", model.StatusCodePending, "690000001", 5000, "XAF", "Coupe", nil, created).
			AddRow("tx-2", "mtn_momo", model.StatusCodeWaiting, "670000001", 7500, "XAF", "Pack", nil, created))

	txs, err := repo.ListPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "pending", txs[1].Status())
	require.NoError(t, mock.ExpectationsWereMet())
}
