package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermernet/bowlpickem/internal/appmeta"
	"github.com/intermernet/bowlpickem/internal/database"
)

func newAdminDB(t *testing.T) *database.Service {
	t.Helper()
	db, err := database.NewService(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.InitMainDB(context.Background()))
	return db
}

func TestRecordLiveScoreStampsFreshness(t *testing.T) {
	ctx := context.Background()
	db := newAdminDB(t)
	game := &database.Game{
		ID:        "rose-2026",
		Name:      "Rose Bowl",
		Team1:     "Ohio State",
		Team2:     "Oregon",
		GameTime:  time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC),
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.UpsertGame(ctx, game))

	at := time.Date(2026, 1, 1, 22, 15, 0, 0, time.UTC)
	require.NoError(t, recordLiveScore(ctx, db, game.ID, 14, 7, at))

	stored, err := db.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(14), stored.Team1Score.Int64)
	assert.Equal(t, int64(7), stored.Team2Score.Int64)
	assert.False(t, stored.IsFinal)

	last, ok, err := appmeta.NewService(db).LastScoresUpdate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(last))
}

func TestRecordLiveScoreUnknownGame(t *testing.T) {
	ctx := context.Background()
	db := newAdminDB(t)

	err := recordLiveScore(ctx, db, "missing", 1, 0, time.Now())
	require.ErrorIs(t, err, database.ErrNotFound)

	_, ok, err := appmeta.NewService(db).LastScoresUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
