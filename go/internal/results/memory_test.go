package results

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(code string, round int, finishedAt time.Time) models.RoundResult {
	ft := finishedAt.Add(-2 * time.Second).UnixMilli()
	return models.RoundResult{
		RoomCode:   code,
		Round:      round,
		Text:       "the quick brown fox",
		StartedAt:  finishedAt.Add(-time.Minute).UTC(),
		FinishedAt: finishedAt.UTC(),
		Placements: []models.Placement{
			{Place: 1, PlayerID: "a", Username: "Alice", Progress: 100, WPM: 80, FinishedTime: &ft},
			{Place: 2, PlayerID: "b", Username: "Bob", Progress: 64, WPM: 51},
		},
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(3)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	list, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.SaveRound(ctx, sampleResult(fmt.Sprintf("ROOM0%d", i), i, base.Add(time.Duration(i)*time.Minute))))
	}

	list, err = repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3, "ring keeps the newest entries")
	assert.Equal(t, []string{"ROOM05", "ROOM04", "ROOM03"}, codes(list))

	list, err = repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROOM05"}, codes(list))

	*list[0].Placements[0].FinishedTime = 0
	again, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.NotZero(t, *again[0].Placements[0].FinishedTime, "results are copied out")
}

func TestMemoryRepositoryRejectsInvalid(t *testing.T) {
	repo := NewMemoryRepository(3)
	err := repo.SaveRound(context.Background(), models.RoundResult{Round: 1})
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func codes(list []models.RoundResult) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.RoomCode
	}
	return out
}
