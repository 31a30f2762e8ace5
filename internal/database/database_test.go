package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/config"
	"ms-lunch/internal/database"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
)

func TestNewTestDBCreatesSchema(t *testing.T) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	user := &models.User{ID: "u1", Email: "a@array.com", Name: "A", PasswordHash: "x", Role: models.RoleEmployee}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Running it again is a no-op.
	assert.NoError(t, database.CreateSchema(ctx, db))
}

func TestVoteUniquePerUserAndPeriod(t *testing.T) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.NewInsert().Model(&models.Vote{ID: "v1", UserID: "u1", RestaurantID: "r1", VotingPeriodID: "p1"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.Vote{ID: "v2", UserID: "u1", RestaurantID: "r2", VotingPeriodID: "p1"}).Exec(ctx)
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(config.DatabaseConfig{Driver: "mysql"}, logger.Discard())
	assert.Error(t, err)
}
