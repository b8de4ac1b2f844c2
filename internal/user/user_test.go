package user

import (
	"context"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wifiobd/shopbot/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	return NewService(db, slog.Default())
}

func TestGetOrCreate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u, err := s.GetOrCreate(ctx, 100, "ivan", "Иван", "Петров")
	require.NoError(t, err)
	require.True(t, u.IsActive)

	// повторный контакт с новым username обновляет профиль
	u, err = s.GetOrCreate(ctx, 100, "ivan_new", "Иван", "Петров")
	require.NoError(t, err)
	require.Equal(t, "ivan_new", u.Username)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestGetMissing(t *testing.T) {
	s := newTestService(t)

	_, err := s.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateContactFields(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, 100, "ivan", "Иван", "")
	require.NoError(t, err)

	require.NoError(t, s.UpdatePhone(ctx, 100, "+79161234567"))
	require.NoError(t, s.UpdateEmail(ctx, 100, "ivan@example.ru"))
	require.NoError(t, s.UpdateOpencartID(ctx, 100, 55))

	u, err := s.Get(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "+79161234567", u.Phone)
	require.Equal(t, "ivan@example.ru", u.Email)
	require.EqualValues(t, 55, *u.OpencartCustomerID)
}
