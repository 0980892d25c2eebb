package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workdeck/workdeck-backend/models"
	"go.uber.org/zap"
)

func TestUsageLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageLogRepository(db, zap.NewNop())

	userID := int64(42)
	entry := models.NewUsageLogEntry(7, 1).
		WithUser(userID).
		WithMetadata(map[string]string{"path": "/api/v1/reports"})

	mock.ExpectExec("INSERT INTO feature_usage_logs").
		WithArgs(entry.ID, entry.TenantID, entry.FeatureID, entry.UserID, entry.Metadata, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), entry)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageLogRepository_DailySeries(t *testing.T) {
	t.Run("returns daily buckets", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageLogRepository(db, zap.NewNop())

		start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows([]string{"day", "count"}).
			AddRow(start, 5).
			AddRow(start.AddDate(0, 0, 1), 3)

		mock.ExpectQuery("GROUP BY day").
			WithArgs(int64(7), int64(1), start, end).
			WillReturnRows(rows)

		buckets, err := repo.DailySeries(context.Background(), 7, 1, start, end)

		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, 5, buckets[0].Count)
		assert.Equal(t, 3, buckets[1].Count)
		assert.True(t, buckets[1].Date.After(buckets[0].Date))
	})

	t.Run("no usage in the window", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageLogRepository(db, zap.NewNop())

		start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 30)

		mock.ExpectQuery("GROUP BY day").
			WithArgs(int64(7), int64(1), start, end).
			WillReturnRows(sqlmock.NewRows([]string{"day", "count"}))

		buckets, err := repo.DailySeries(context.Background(), 7, 1, start, end)

		require.NoError(t, err)
		assert.Empty(t, buckets)
	})
}
