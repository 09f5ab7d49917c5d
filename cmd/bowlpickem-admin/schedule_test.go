package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchedule = `
games:
  - id: rose-2026
    name: Rose Bowl
    team1: Ohio State
    team2: Oregon
    game_time: 2026-01-01T21:00:00Z
    location: Pasadena, CA
    tv_channel: ESPN
  - id: sugar-2026
    name: Sugar Bowl
    team1: Georgia
    team2: Notre Dame
    game_time: 2026-01-02T01:45:00Z
`

func TestParseSchedule(t *testing.T) {
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	games, err := parseSchedule(strings.NewReader(sampleSchedule), now)
	require.NoError(t, err)
	require.Len(t, games, 2)

	rose := games[0]
	assert.Equal(t, "rose-2026", rose.ID)
	assert.Equal(t, "Ohio State", rose.Team1)
	assert.Equal(t, time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC), rose.GameTime)
	assert.True(t, rose.Location.Valid)
	assert.Equal(t, "ESPN", rose.TVChannel.String)
	assert.Equal(t, now, rose.CreatedAt)

	assert.False(t, games[1].Location.Valid)
	assert.False(t, games[1].TVChannel.Valid)
}

func TestParseScheduleRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "empty"},
		{"missing id", "games:\n  - name: X\n    team1: A\n    team2: B\n    game_time: 2026-01-01T00:00:00Z\n", "id is required"},
		{"missing team", "games:\n  - id: x\n    name: X\n    team1: A\n    game_time: 2026-01-01T00:00:00Z\n", "both teams"},
		{"missing time", "games:\n  - id: x\n    name: X\n    team1: A\n    team2: B\n", "game_time"},
		{"duplicate id", "games:\n  - {id: x, name: X, team1: A, team2: B, game_time: 2026-01-01T00:00:00Z}\n  - {id: x, name: Y, team1: C, team2: D, game_time: 2026-01-02T00:00:00Z}\n", "duplicate"},
		{"unknown field", "games:\n  - {id: x, name: X, team1: A, team2: B, game_time: 2026-01-01T00:00:00Z, winner: team1}\n", "winner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSchedule(strings.NewReader(tt.yaml), time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
