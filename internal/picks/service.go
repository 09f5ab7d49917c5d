package picks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	ErrPicksLocked     = errors.New("picks are locked")
	ErrInvalidSide     = errors.New("picked team must be team1 or team2")
	ErrGameNotFound    = errors.New("game not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Store is the slice of the database the pick service needs.
type Store interface {
	ListGames(ctx context.Context) ([]database.Game, error)
	GetGame(ctx context.Context, id string) (*database.Game, error)
	GetProfile(ctx context.Context, id string) (*database.Profile, error)
	ListPicksByUser(ctx context.Context, userID string) ([]database.Pick, error)
	GetPickForGame(ctx context.Context, userID, gameID string) (*database.Pick, error)
	InsertPick(ctx context.Context, p *database.Pick) error
	UpdatePickSide(ctx context.Context, id string, side database.Side) error
}

// Service reads the schedule and records picks.
type Service struct {
	store     Store
	lock      LockPolicy
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

func NewService(store Store, lock LockPolicy, publisher events.Publisher, m *metrics.Metrics, logger logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:     store,
		lock:      lock,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Lock returns the policy the service enforces.
func (s *Service) Lock() LockPolicy {
	return s.lock
}

// ListGames returns the schedule ordered by kickoff.
func (s *Service) ListGames(ctx context.Context) ([]database.Game, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// ListPicks returns every pick userID has made.
func (s *Service) ListPicks(ctx context.Context, userID string) ([]database.Pick, error) {
	picks, err := s.store.ListPicksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	return picks, nil
}

// MakePick records side as userID's pick for gameID. An existing pick for the
// same game is changed in place; created reports whether a new row was written.
func (s *Service) MakePick(ctx context.Context, userID, gameID string, side database.Side) (pick *database.Pick, created bool, err error) {
	now := s.lock.now()
	if s.lock.IsLockedAt(now) {
		return nil, false, ErrPicksLocked
	}
	if !side.Valid() {
		return nil, false, ErrInvalidSide
	}

	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, false, ErrGameNotFound
		}
		return nil, false, fmt.Errorf("get game: %w", err)
	}

	existing, err := s.store.GetPickForGame(ctx, userID, gameID)
	switch {
	case err == nil:
		if err := s.store.UpdatePickSide(ctx, existing.ID, side); err != nil {
			return nil, false, fmt.Errorf("update pick: %w", err)
		}
		existing.PickedTeam = side
		pick = existing
	case errors.Is(err, database.ErrNotFound):
		pick = &database.Pick{
			ID:         uuid.NewString(),
			UserID:     userID,
			GameID:     gameID,
			PickedTeam: side,
			CreatedAt:  now.UTC(),
		}
		if err := s.store.InsertPick(ctx, pick); err != nil {
			return nil, false, fmt.Errorf("insert pick: %w", err)
		}
		created = true
	default:
		return nil, false, fmt.Errorf("get existing pick: %w", err)
	}

	s.metrics.PickSaved(created)
	evt := events.PickSaved{
		UserID:     userID,
		GameID:     gameID,
		PickedTeam: string(side),
		Created:    created,
		At:         now.UTC(),
	}
	if err := s.publisher.Publish(ctx, events.SubjectPickSaved, evt); err != nil {
		s.logger.WithError(err).WithField("game_id", gameID).Warn("Failed to publish pick event")
	}
	return pick, created, nil
}

// Summary is everything the home view shows for the signed-in user.
type Summary struct {
	Games         []database.Game
	Picks         []database.Pick
	Score         int
	PicksCount    int
	TotalGames    int
	Locked        bool
	TimeUntilLock time.Duration
}

func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	games, err := s.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	picks, err := s.ListPicks(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining, open := s.lock.TimeUntilLock()
	return &Summary{
		Games:         games,
		Picks:         picks,
		Score:         Score(picks, games),
		PicksCount:    len(picks),
		TotalGames:    len(games),
		Locked:        !open,
		TimeUntilLock: remaining,
	}, nil
}

// UserPicksView is the read-only view of another user's picks.
type UserPicksView struct {
	Profile    database.Profile
	Picks      []database.Pick
	Games      []database.Game
	Dates      []DateGroup
	Score      int
	PicksCount int
}

// UserPicks loads userID's profile, picks and the schedule grouped by date.
func (s *Service) UserPicks(ctx context.Context, userID string) (*UserPicksView, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	games, err := s.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	picks, err := s.ListPicks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserPicksView{
		Profile:    *profile,
		Picks:      picks,
		Games:      games,
		Dates:      GroupByDate(games),
		Score:      Score(picks, games),
		PicksCount: len(picks),
	}, nil
}
