package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "full_name", "role", "team", "is_active", "created_at", "updated_at", "last_login_at"})
}

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	user := &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		FullName:     "Alice",
		Role:         models.RoleUser,
		Team:         "alpha",
		IsActive:     true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.Equal(t, int64(3), user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email")).
		WithArgs("alice").
		WillReturnRows(userRows().AddRow(int64(3), "alice", "alice@example.com", "hash", "Alice", "USER", "alpha", true, now, now, nil))

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(3), user.ID)
	require.Equal(t, "alpha", user.Team)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindTeamLeader(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email")).
		WithArgs("alpha", models.RoleTeamLeader).
		WillReturnRows(userRows().AddRow(int64(2), "bob", "bob@example.com", "hash", "Bob", "TEAM_LEADER", "alpha", true, now, now, nil))

	leader, err := repo.FindTeamLeader(context.Background(), "alpha")
	require.NoError(t, err)
	require.True(t, leader.IsTeamLeaderOf("alpha"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryConsumePasswordResetToken(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE password_reset_tokens SET used_at")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "used_at", "created_at"}).
			AddRow(int64(1), int64(3), "tok", now.Add(time.Hour), now, now.Add(-time.Minute)))

	prt, err := repo.ConsumePasswordResetToken(context.Background(), "tok", now)
	require.NoError(t, err)
	require.Equal(t, int64(3), prt.UserID)
	require.NotNil(t, prt.UsedAt)

	// A spent or expired token no longer matches.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE password_reset_tokens SET used_at")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.ConsumePasswordResetToken(context.Background(), "tok", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
