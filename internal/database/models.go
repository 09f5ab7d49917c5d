package database

import (
	"database/sql"
	"time"
)

// Side identifies one of the two team slots of a game. Picks and recorded
// winners are expressed as a Side, never as a team name.
type Side string

const (
	SideTeam1 Side = "team1"
	SideTeam2 Side = "team2"
)

// Valid reports whether s names one of the two team slots.
func (s Side) Valid() bool {
	return s == SideTeam1 || s == SideTeam2
}

// Profile represents a record in the 'profiles' table. The ID matches the
// authenticated user's identity.
type Profile struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName sql.NullString `json:"-"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Pool represents a record in the 'pools' table.
type Pool struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"inviteCode"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PoolMember represents a record in the 'pool_members' table.
type PoolMember struct {
	ID       string    `json:"id"`
	PoolID   string    `json:"poolId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Game represents a record in the 'games' table.
// Winner is only ever set on a finalized game; scores may be set while the
// game is still in progress.
type Game struct {
	ID         string
	Name       string
	Team1      string
	Team2      string
	GameTime   time.Time
	Location   sql.NullString
	TVChannel  sql.NullString
	Winner     sql.NullString
	Team1Score sql.NullInt64
	Team2Score sql.NullInt64
	IsFinal    bool
	CreatedAt  time.Time
}

// WinnerSide returns the recorded winner of a finalized game.
func (g *Game) WinnerSide() (Side, bool) {
	if !g.IsFinal || !g.Winner.Valid {
		return "", false
	}
	side := Side(g.Winner.String)
	return side, side.Valid()
}

// Pick represents a record in the 'picks' table.
type Pick struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	GameID     string    `json:"gameId"`
	PickedTeam Side      `json:"pickedTeam"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AppMetadata represents a key/value record in the 'app_metadata' table.
type AppMetadata struct {
	Key       string
	Value     sql.NullString
	UpdatedAt time.Time
}

// SignInToken represents a pending or used magic-link sign-in.
// Only a digest of the emailed token is stored.
type SignInToken struct {
	ID         string
	Email      string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt sql.NullTime
	CreatedAt  time.Time
}
