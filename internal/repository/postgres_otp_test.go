package repository

import (
	"context"
	"testing"
	"time"

	"chrono-core/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newOtpRepoMock(t *testing.T) (*PostgresOtpRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresOtpRepository(db), mock
}

func TestOtpCreate_SupersedesPreviousChallenge(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE otp_challenges SET is_used = TRUE`).
		WithArgs("user-1", "login").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO otp_challenges`).
		WithArgs("otp-2", "user-1", "a@example.com", "123456", "login", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"otp_id"}).AddRow("otp-2"))
	mock.ExpectCommit()

	otpID, err := repo.Create(context.Background(), &domain.OtpChallenge{
		OtpID:     "otp-2",
		UserID:    "user-1",
		Email:     "a@example.com",
		Code:      "123456",
		Purpose:   domain.OtpPurposeLogin,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, "otp-2", otpID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOtpCreate_RollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE otp_challenges SET is_used = TRUE`).
		WithArgs("user-1", "login").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO otp_challenges`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &domain.OtpChallenge{
		OtpID:     "otp-2",
		UserID:    "user-1",
		Email:     "a@example.com",
		Code:      "123456",
		Purpose:   domain.OtpPurposeLogin,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOtpGetLatest_NotFound(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	mock.ExpectQuery(`SELECT .+ FROM otp_challenges`).
		WithArgs("user-1", "login").
		WillReturnRows(sqlmock.NewRows([]string{"otp_id"}))

	_, err := repo.GetLatest(context.Background(), "user-1", "login")
	require.ErrorIs(t, err, domain.ErrOtpNotFound)
}

func TestOtpIncrementAttempts_ReturnsNewCount(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	mock.ExpectQuery(`UPDATE otp_challenges SET attempts = attempts \+ 1`).
		WithArgs("otp-1").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

	n, err := repo.IncrementAttempts(context.Background(), "otp-1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestOtpConsume_CASWins(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	mock.ExpectExec(`UPDATE otp_challenges SET is_used = TRUE`).
		WithArgs("otp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Consume(context.Background(), "otp-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOtpConsume_CASLoses(t *testing.T) {
	repo, mock := newOtpRepoMock(t)

	// 已被并发的 verify 消费（或已过期）：零行更新
	mock.ExpectExec(`UPDATE otp_challenges SET is_used = TRUE`).
		WithArgs("otp-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), "otp-1")
	require.NoError(t, err)
	require.False(t, ok)
}
