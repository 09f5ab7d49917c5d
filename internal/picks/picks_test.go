package picks

import (
	"database/sql"
	"testing"
	"time"

	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestLockPolicyBoundary(t *testing.T) {
	policy := NewLockPolicy(DefaultLockTime)

	assert.False(t, policy.IsLockedAt(DefaultLockTime.Add(-time.Millisecond)))
	assert.True(t, policy.IsLockedAt(DefaultLockTime))
	assert.True(t, policy.IsLockedAt(DefaultLockTime.Add(time.Hour)))
}

func TestLockPolicyTimeUntilLock(t *testing.T) {
	now := DefaultLockTime.Add(-90 * time.Minute)
	policy := LockPolicy{Cutoff: DefaultLockTime, Now: func() time.Time { return now }}

	remaining, open := policy.TimeUntilLock()
	assert.True(t, open)
	assert.Equal(t, 90*time.Minute, remaining)
	assert.False(t, policy.IsLocked())

	now = DefaultLockTime
	remaining, open = policy.TimeUntilLock()
	assert.False(t, open)
	assert.Zero(t, remaining)
	assert.True(t, policy.IsLocked())
}

func finalGame(id string, winner database.Side) database.Game {
	return database.Game{
		ID:      id,
		Winner:  sql.NullString{String: string(winner), Valid: true},
		IsFinal: true,
	}
}

func TestScore(t *testing.T) {
	live := database.Game{ID: "live", Team1Score: sql.NullInt64{Int64: 14, Valid: true}}
	games := []database.Game{
		finalGame("g1", database.SideTeam1),
		finalGame("g2", database.SideTeam2),
		finalGame("g3", database.SideTeam1),
		live,
		{ID: "final-no-winner", IsFinal: true},
	}

	tests := []struct {
		name  string
		picks []database.Pick
		want  int
	}{
		{name: "no picks", want: 0},
		{
			name: "all correct",
			picks: []database.Pick{
				{GameID: "g1", PickedTeam: database.SideTeam1},
				{GameID: "g2", PickedTeam: database.SideTeam2},
				{GameID: "g3", PickedTeam: database.SideTeam1},
			},
			want: 3,
		},
		{
			name: "mixed",
			picks: []database.Pick{
				{GameID: "g1", PickedTeam: database.SideTeam2},
				{GameID: "g2", PickedTeam: database.SideTeam2},
			},
			want: 1,
		},
		{
			name: "live and winnerless games never count",
			picks: []database.Pick{
				{GameID: "live", PickedTeam: database.SideTeam1},
				{GameID: "final-no-winner", PickedTeam: database.SideTeam1},
			},
			want: 0,
		},
		{
			name: "unknown game ignored",
			picks: []database.Pick{
				{GameID: "missing", PickedTeam: database.SideTeam1},
				{GameID: "g3", PickedTeam: database.SideTeam1},
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.picks, games))
		})
	}
}

// scoreByDefinition counts picks with a matching final game by brute force.
func scoreByDefinition(picks []database.Pick, games []database.Game) int {
	n := 0
	for _, p := range picks {
		for _, g := range games {
			if g.ID == p.GameID && g.IsFinal && g.Winner.Valid && g.Winner.String == string(p.PickedTeam) {
				n++
				break
			}
		}
	}
	return n
}

func TestScoreMatchesDefinition(t *testing.T) {
	sides := []database.Side{database.SideTeam1, database.SideTeam2}
	var games []database.Game
	for i := 0; i < 12; i++ {
		g := database.Game{ID: string(rune('a' + i)), IsFinal: i%3 != 0}
		if g.IsFinal && i%4 != 1 {
			g.Winner = sql.NullString{String: string(sides[i%2]), Valid: true}
		}
		games = append(games, g)
	}
	for seed := 0; seed < 8; seed++ {
		var picks []database.Pick
		for i := 0; i < 14; i++ {
			if (i+seed)%3 == 0 {
				continue
			}
			picks = append(picks, database.Pick{
				GameID:     string(rune('a' + i)),
				PickedTeam: sides[(i*seed)%2],
			})
		}
		assert.Equal(t, scoreByDefinition(picks, games), Score(picks, games), "seed %d", seed)
	}
}

func TestGroupByDate(t *testing.T) {
	games := []database.Game{
		// 7:30pm Eastern on Friday Dec 26.
		{ID: "a", GameTime: time.Date(2025, 12, 27, 0, 30, 0, 0, time.UTC)},
		{ID: "b", GameTime: time.Date(2025, 12, 26, 17, 0, 0, 0, time.UTC)},
		{ID: "c", GameTime: time.Date(2025, 12, 29, 20, 0, 0, 0, time.UTC)},
		{ID: "d", GameTime: time.Date(2026, 1, 1, 17, 0, 0, 0, time.UTC)},
	}

	groups := GroupByDate(games)

	if assert.Len(t, groups, 3) {
		assert.Equal(t, "Friday, Dec 26", groups[0].Label)
		assert.Equal(t, []string{"a", "b"}, gameIDs(groups[0].Games))
		assert.Equal(t, "Monday, Dec 29", groups[1].Label)
		assert.Equal(t, "Thursday, Jan 1", groups[2].Label)
	}
	assert.Empty(t, GroupByDate(nil))
}

func gameIDs(games []database.Game) []string {
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	return ids
}
