package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBorTx is an interface that allows functions to accept either a `*sql.DB` for single queries
// or a `*sql.Tx` for operations within a transaction.
type DBorTx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// inClause renders "(?,?,...)" for len(ids) placeholders and the matching args.
func inClause(ids []string) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(?" + strings.Repeat(",?", len(ids)-1) + ")", args
}

// --- Profile Queries ---

const profileColumns = `id, email, display_name, created_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*Profile, error) {
	p := &Profile{}
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

func createProfile(ctx context.Context, db DBorTx, p *Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?);`
	_, err := db.ExecContext(ctx, query, p.ID, p.Email, p.DisplayName, p.CreatedAt.UTC())
	return err
}

func getProfileByEmail(ctx context.Context, db DBorTx, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?;`
	return scanProfile(db.QueryRowContext(ctx, query, email))
}

// CreateProfile inserts a new profile row.
func (s *Service) CreateProfile(ctx context.Context, p *Profile) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		return createProfile(ctx, tx, p)
	})
}

// EnsureProfile returns the profile registered for email, creating it from
// newProfile when none exists. The boolean reports whether it was created.
func (s *Service) EnsureProfile(ctx context.Context, newProfile *Profile) (*Profile, bool, error) {
	var (
		profile *Profile
		created bool
	)
	err := s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		existing, err := getProfileByEmail(ctx, tx, newProfile.Email)
		if err == nil {
			profile = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := createProfile(ctx, tx, newProfile); err != nil {
			return err
		}
		profile, created = newProfile, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return profile, created, nil
}

// GetProfile returns the profile with the given user id.
func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?;`
	return scanProfile(s.mainDB.QueryRowContext(ctx, query, id))
}

// GetProfileByEmail returns the profile registered for email.
func (s *Service) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return getProfileByEmail(ctx, s.mainDB, email)
}

// ListProfilesByIDs returns the profiles for the given ids, in no particular order.
func (s *Service) ListProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return []Profile{}, nil
	}
	in, args := inClause(ids)
	rows, err := s.mainDB.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id IN `+in+`;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// --- Pool & Membership Queries ---

const poolColumns = `id, name, invite_code, created_by, created_at`

func scanPool(row interface{ Scan(...interface{}) error }) (*Pool, error) {
	p := &Pool{}
	if err := row.Scan(&p.ID, &p.Name, &p.InviteCode, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

func queryPools(ctx context.Context, db DBorTx, query string, args ...interface{}) ([]Pool, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pools := []Pool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

func addPoolMember(ctx context.Context, db DBorTx, m *PoolMember) error {
	query := `INSERT INTO pool_members (id, pool_id, user_id, joined_at) VALUES (?, ?, ?, ?);`
	_, err := db.ExecContext(ctx, query, m.ID, m.PoolID, m.UserID, m.JoinedAt.UTC())
	return err
}

// CreatePoolWithOwner inserts the pool row and the owner's membership in a
// single transaction: either both rows exist afterwards or neither does.
// An invite-code collision is reported as ErrConflict.
func (s *Service) CreatePoolWithOwner(ctx context.Context, pool *Pool, owner *PoolMember) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO pools (` + poolColumns + `) VALUES (?, ?, ?, ?, ?);`
		if _, err := tx.ExecContext(ctx, query, pool.ID, pool.Name, pool.InviteCode, pool.CreatedBy, pool.CreatedAt.UTC()); err != nil {
			return err
		}
		return addPoolMember(ctx, tx, owner)
	})
}

// GetPool returns the pool with the given id.
func (s *Service) GetPool(ctx context.Context, id string) (*Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE id = ?;`
	return scanPool(s.mainDB.QueryRowContext(ctx, query, id))
}

// FindPoolsByInviteCode returns every pool carrying code, oldest first.
func (s *Service) FindPoolsByInviteCode(ctx context.Context, code string) ([]Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE invite_code = ? ORDER BY created_at ASC, id ASC;`
	return queryPools(ctx, s.mainDB, query, code)
}

// ListPoolsByIDs returns the given pools, newest first.
func (s *Service) ListPoolsByIDs(ctx context.Context, ids []string) ([]Pool, error) {
	if len(ids) == 0 {
		return []Pool{}, nil
	}
	in, args := inClause(ids)
	query := `SELECT ` + poolColumns + ` FROM pools WHERE id IN ` + in + ` ORDER BY created_at DESC, id ASC;`
	return queryPools(ctx, s.mainDB, query, args...)
}

func scanMember(row interface{ Scan(...interface{}) error }) (*PoolMember, error) {
	m := &PoolMember{}
	if err := row.Scan(&m.ID, &m.PoolID, &m.UserID, &m.JoinedAt); err != nil {
		return nil, translateError(err)
	}
	return m, nil
}

func (s *Service) queryMembers(ctx context.Context, query string, args ...interface{}) ([]PoolMember, error) {
	rows, err := s.mainDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []PoolMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// AddPoolMember inserts a membership row. A duplicate (pool, user) pair is
// reported as ErrConflict.
func (s *Service) AddPoolMember(ctx context.Context, m *PoolMember) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		return addPoolMember(ctx, tx, m)
	})
}

// GetPoolMember returns the membership of userID in poolID.
func (s *Service) GetPoolMember(ctx context.Context, poolID, userID string) (*PoolMember, error) {
	query := `SELECT id, pool_id, user_id, joined_at FROM pool_members WHERE pool_id = ? AND user_id = ?;`
	return scanMember(s.mainDB.QueryRowContext(ctx, query, poolID, userID))
}

// RemovePoolMember deletes the membership of userID in poolID. Deleting a
// membership that does not exist is not an error.
func (s *Service) RemovePoolMember(ctx context.Context, poolID, userID string) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM pool_members WHERE pool_id = ? AND user_id = ?;`, poolID, userID)
		return err
	})
}

// ListPoolMembers returns the memberships of a pool in join order.
func (s *Service) ListPoolMembers(ctx context.Context, poolID string) ([]PoolMember, error) {
	return s.queryMembers(ctx,
		`SELECT id, pool_id, user_id, joined_at FROM pool_members WHERE pool_id = ? ORDER BY joined_at ASC, id ASC;`,
		poolID)
}

// ListMembershipsByUser returns every membership held by userID.
func (s *Service) ListMembershipsByUser(ctx context.Context, userID string) ([]PoolMember, error) {
	return s.queryMembers(ctx,
		`SELECT id, pool_id, user_id, joined_at FROM pool_members WHERE user_id = ? ORDER BY joined_at ASC, id ASC;`,
		userID)
}

// CountPoolMembers returns the number of members of poolID.
func (s *Service) CountPoolMembers(ctx context.Context, poolID string) (int, error) {
	var count int
	err := s.mainDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pool_members WHERE pool_id = ?;`, poolID).Scan(&count)
	return count, err
}

// --- Game Queries ---

const gameColumns = `id, name, team1, team2, game_time, location, tv_channel, winner, team1_score, team2_score, is_final, created_at`

func scanGame(row interface{ Scan(...interface{}) error }) (*Game, error) {
	g := &Game{}
	err := row.Scan(
		&g.ID, &g.Name, &g.Team1, &g.Team2, &g.GameTime,
		&g.Location, &g.TVChannel, &g.Winner,
		&g.Team1Score, &g.Team2Score, &g.IsFinal, &g.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return g, nil
}

// UpsertGame inserts a game or refreshes its schedule fields. Results
// (scores, winner, is_final) are left untouched on an existing row.
func (s *Service) UpsertGame(ctx context.Context, g *Game) error {
	query := `
		INSERT INTO games (id, name, team1, team2, game_time, location, tv_channel, is_final, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			team1 = excluded.team1,
			team2 = excluded.team2,
			game_time = excluded.game_time,
			location = excluded.location,
			tv_channel = excluded.tv_channel;`
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			g.ID, g.Name, g.Team1, g.Team2, g.GameTime.UTC(), g.Location, g.TVChannel, g.CreatedAt.UTC())
		return err
	})
}

// GetGame returns the game with the given id.
func (s *Service) GetGame(ctx context.Context, id string) (*Game, error) {
	return scanGame(s.mainDB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?;`, id))
}

// ListGames returns the full schedule ordered by start time.
func (s *Service) ListGames(ctx context.Context) ([]Game, error) {
	rows, err := s.mainDB.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY game_time ASC, id ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func execOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGameScore records a live score without finalizing the game.
func (s *Service) UpdateGameScore(ctx context.Context, id string, team1Score, team2Score int64) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		return execOne(ctx, tx, `UPDATE games SET team1_score = ?, team2_score = ? WHERE id = ?;`, team1Score, team2Score, id)
	})
}

// FinalizeGame marks a game final with its winner, optionally recording the
// final score, and stamps last_scores_update in the same transaction.
func (s *Service) FinalizeGame(ctx context.Context, id string, winner Side, team1Score, team2Score *int64, at time.Time) error {
	if !winner.Valid() {
		return fmt.Errorf("invalid winner %q", winner)
	}
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		err := execOne(ctx, tx, `
			UPDATE games SET
				is_final = 1,
				winner = ?,
				team1_score = COALESCE(?, team1_score),
				team2_score = COALESCE(?, team2_score)
			WHERE id = ?;`, string(winner), nullableInt(team1Score), nullableInt(team2Score), id)
		if err != nil {
			return err
		}
		return setMetadata(ctx, tx, MetadataLastScoresUpdate, at.UTC().Format(time.RFC3339), at)
	})
}

// --- Pick Queries ---

const pickColumns = `id, user_id, game_id, picked_team, created_at`

func scanPick(row interface{ Scan(...interface{}) error }) (*Pick, error) {
	p := &Pick{}
	if err := row.Scan(&p.ID, &p.UserID, &p.GameID, &p.PickedTeam, &p.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

func (s *Service) queryPicks(ctx context.Context, query string, args ...interface{}) ([]Pick, error) {
	rows, err := s.mainDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	picks := []Pick{}
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, err
		}
		picks = append(picks, *p)
	}
	return picks, rows.Err()
}

// InsertPick inserts a new pick. A second pick for the same (user, game)
// pair is reported as ErrConflict.
func (s *Service) InsertPick(ctx context.Context, p *Pick) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO picks (`+pickColumns+`) VALUES (?, ?, ?, ?, ?);`,
			p.ID, p.UserID, p.GameID, string(p.PickedTeam), p.CreatedAt.UTC())
		return err
	})
}

// UpdatePickSide changes the chosen side of an existing pick in place.
func (s *Service) UpdatePickSide(ctx context.Context, id string, side Side) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		return execOne(ctx, tx, `UPDATE picks SET picked_team = ? WHERE id = ?;`, string(side), id)
	})
}

// GetPickForGame returns userID's pick for gameID.
func (s *Service) GetPickForGame(ctx context.Context, userID, gameID string) (*Pick, error) {
	query := `SELECT ` + pickColumns + ` FROM picks WHERE user_id = ? AND game_id = ?;`
	return scanPick(s.mainDB.QueryRowContext(ctx, query, userID, gameID))
}

// ListPicksByUser returns every pick made by userID.
func (s *Service) ListPicksByUser(ctx context.Context, userID string) ([]Pick, error) {
	return s.queryPicks(ctx, `SELECT `+pickColumns+` FROM picks WHERE user_id = ? ORDER BY created_at ASC, id ASC;`, userID)
}

// ListPicksByUsers returns every pick made by any of userIDs.
func (s *Service) ListPicksByUsers(ctx context.Context, userIDs []string) ([]Pick, error) {
	if len(userIDs) == 0 {
		return []Pick{}, nil
	}
	in, args := inClause(userIDs)
	return s.queryPicks(ctx, `SELECT `+pickColumns+` FROM picks WHERE user_id IN `+in+` ORDER BY created_at ASC, id ASC;`, args...)
}

// --- App Metadata Queries ---

func setMetadata(ctx context.Context, db DBorTx, key, value string, at time.Time) error {
	query := `
		INSERT INTO app_metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`
	_, err := db.ExecContext(ctx, query, key, value, at.UTC())
	return err
}

// GetMetadata returns the metadata entry stored under key.
func (s *Service) GetMetadata(ctx context.Context, key string) (*AppMetadata, error) {
	m := &AppMetadata{}
	err := s.mainDB.QueryRowContext(ctx, `SELECT key, value, updated_at FROM app_metadata WHERE key = ?;`, key).
		Scan(&m.Key, &m.Value, &m.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return m, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Service) SetMetadata(ctx context.Context, key, value string, at time.Time) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		return setMetadata(ctx, tx, key, value, at)
	})
}

// --- Sign-in Token Queries ---

// CreateSignInToken stores a pending magic-link sign-in.
func (s *Service) CreateSignInToken(ctx context.Context, t *SignInToken) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sign_in_tokens (id, email, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?);`,
			t.ID, t.Email, t.TokenHash, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
		return err
	})
}

// ConsumeSignInToken marks the token with the given digest as used and
// returns it. Unknown, already used and expired tokens yield ErrNotFound.
func (s *Service) ConsumeSignInToken(ctx context.Context, tokenHash string, now time.Time) (*SignInToken, error) {
	var token *SignInToken
	err := s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		t := &SignInToken{}
		err := tx.QueryRowContext(ctx,
			`SELECT id, email, token_hash, expires_at, consumed_at, created_at FROM sign_in_tokens WHERE token_hash = ?;`,
			tokenHash).Scan(&t.ID, &t.Email, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
		if err != nil {
			return translateError(err)
		}
		if t.ConsumedAt.Valid || !now.Before(t.ExpiresAt) {
			return ErrNotFound
		}
		if err := execOne(ctx, tx, `UPDATE sign_in_tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL;`, now.UTC(), t.ID); err != nil {
			return err
		}
		t.ConsumedAt = sql.NullTime{Time: now, Valid: true}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}
