package pools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/sirupsen/logrus"
)

// maxInviteCodeAttempts bounds how many fresh codes Create draws when the
// generated one is already taken.
const maxInviteCodeAttempts = 5

const maxPoolNameLength = 80

var (
	ErrPoolNotFound        = errors.New("pool not found")
	ErrInvalidPoolName     = errors.New("pool name must be between 1 and 80 characters")
	ErrInviteCodeExhausted = errors.New("could not allocate a unique invite code")
	ErrNotMember           = errors.New("not a member of this pool")
)

// Store is the slice of the database the pool directory and leaderboard need.
type Store interface {
	CreatePoolWithOwner(ctx context.Context, pool *database.Pool, owner *database.PoolMember) error
	GetPool(ctx context.Context, id string) (*database.Pool, error)
	FindPoolsByInviteCode(ctx context.Context, code string) ([]database.Pool, error)
	ListPoolsByIDs(ctx context.Context, ids []string) ([]database.Pool, error)

	AddPoolMember(ctx context.Context, m *database.PoolMember) error
	GetPoolMember(ctx context.Context, poolID, userID string) (*database.PoolMember, error)
	RemovePoolMember(ctx context.Context, poolID, userID string) error
	ListPoolMembers(ctx context.Context, poolID string) ([]database.PoolMember, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]database.PoolMember, error)
	CountPoolMembers(ctx context.Context, poolID string) (int, error)

	ListProfilesByIDs(ctx context.Context, ids []string) ([]database.Profile, error)
	ListPicksByUsers(ctx context.Context, userIDs []string) ([]database.Pick, error)
	ListGames(ctx context.Context) ([]database.Game, error)
}

// PoolWithMembers is a pool together with its current member count.
type PoolWithMembers struct {
	database.Pool
	MemberCount int
}

// JoinResult describes the outcome of a successful join.
type JoinResult struct {
	Pool          database.Pool
	AlreadyMember bool
}

// Directory creates pools and manages their memberships.
type Directory struct {
	store     Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger

	now  func() time.Time
	intN func(n int) int
}

func NewDirectory(store Store, publisher events.Publisher, m *metrics.Metrics, logger logrus.FieldLogger) *Directory {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Directory{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Create makes a pool named name owned by ownerID. The pool row and the
// owner's membership are written in one transaction. A colliding invite code
// is replaced by a fresh one.
func (d *Directory) Create(ctx context.Context, name, ownerID string) (*database.Pool, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxPoolNameLength {
		return nil, ErrInvalidPoolName
	}

	now := d.now().UTC()
	for attempt := 1; attempt <= maxInviteCodeAttempts; attempt++ {
		pool := &database.Pool{
			ID:         uuid.NewString(),
			Name:       name,
			InviteCode: GenerateInviteCode(d.intN),
			CreatedBy:  ownerID,
			CreatedAt:  now,
		}
		owner := &database.PoolMember{
			ID:       uuid.NewString(),
			PoolID:   pool.ID,
			UserID:   ownerID,
			JoinedAt: now,
		}
		err := d.store.CreatePoolWithOwner(ctx, pool, owner)
		if err == nil {
			d.metrics.PoolCreated()
			d.logger.WithFields(logrus.Fields{
				"pool_id":  pool.ID,
				"owner_id": ownerID,
			}).Info("Pool created")
			return pool, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		d.logger.WithField("attempt", attempt).Warn("Invite code collision, drawing a new code")
	}
	return nil, ErrInviteCodeExhausted
}

// FindByCode resolves an invite code, ignoring case and surrounding space.
// If more than one pool ever carries the code the oldest wins.
func (d *Directory) FindByCode(ctx context.Context, code string) (*database.Pool, error) {
	normalized, ok := NormalizeInviteCode(code)
	if !ok {
		return nil, ErrPoolNotFound
	}
	pools, err := d.store.FindPoolsByInviteCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find pool by code: %w", err)
	}
	if len(pools) == 0 {
		return nil, ErrPoolNotFound
	}
	return &pools[0], nil
}

// JoinByCode adds userID to the pool carrying code. Joining a pool the user
// already belongs to succeeds without writing anything.
func (d *Directory) JoinByCode(ctx context.Context, code, userID string) (*JoinResult, error) {
	pool, err := d.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	_, err = d.store.GetPoolMember(ctx, pool.ID, userID)
	switch {
	case err == nil:
		d.metrics.PoolJoined(true)
		return &JoinResult{Pool: *pool, AlreadyMember: true}, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("check membership: %w", err)
	}

	now := d.now().UTC()
	member := &database.PoolMember{
		ID:       uuid.NewString(),
		PoolID:   pool.ID,
		UserID:   userID,
		JoinedAt: now,
	}
	if err := d.store.AddPoolMember(ctx, member); err != nil {
		// A concurrent join for the same user won the insert.
		if errors.Is(err, database.ErrConflict) {
			d.metrics.PoolJoined(true)
			return &JoinResult{Pool: *pool, AlreadyMember: true}, nil
		}
		return nil, fmt.Errorf("add member: %w", err)
	}

	d.metrics.PoolJoined(false)
	evt := events.PoolMemberJoined{PoolID: pool.ID, PoolName: pool.Name, UserID: userID, At: now}
	if err := d.publisher.Publish(ctx, events.SubjectPoolMemberJoined, evt); err != nil {
		d.logger.WithError(err).WithField("pool_id", pool.ID).Warn("Failed to publish join event")
	}
	return &JoinResult{Pool: *pool}, nil
}

// Leave removes userID from poolID. Leaving a pool one is not in succeeds.
func (d *Directory) Leave(ctx context.Context, poolID, userID string) error {
	if err := d.store.RemovePoolMember(ctx, poolID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// Get returns a pool by id.
func (d *Directory) Get(ctx context.Context, poolID string) (*database.Pool, error) {
	pool, err := d.store.GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return pool, nil
}

// GetWithMembers returns a pool by id with its member count.
func (d *Directory) GetWithMembers(ctx context.Context, poolID string) (*PoolWithMembers, error) {
	pool, err := d.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	count, err := d.store.CountPoolMembers(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	return &PoolWithMembers{Pool: *pool, MemberCount: count}, nil
}

// IsMember reports whether userID belongs to poolID.
func (d *Directory) IsMember(ctx context.Context, poolID, userID string) (bool, error) {
	_, err := d.store.GetPoolMember(ctx, poolID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check membership: %w", err)
	}
}

// RequireMember returns ErrPoolNotFound when the pool does not exist and
// ErrNotMember when userID is not in it.
func (d *Directory) RequireMember(ctx context.Context, poolID, userID string) (*database.Pool, error) {
	pool, err := d.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	ok, err := d.IsMember(ctx, poolID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return pool, nil
}

// ListForUser returns the pools userID belongs to, newest first, each with
// its member count.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]PoolWithMembers, error) {
	memberships, err := d.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.PoolID)
	}
	pools, err := d.store.ListPoolsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	out := make([]PoolWithMembers, 0, len(pools))
	for _, p := range pools {
		count, err := d.store.CountPoolMembers(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("count members of %s: %w", p.ID, err)
		}
		out = append(out, PoolWithMembers{Pool: p, MemberCount: count})
	}
	return out, nil
}

// Members returns the memberships of poolID in join order.
func (d *Directory) Members(ctx context.Context, poolID string) ([]database.PoolMember, error) {
	members, err := d.store.ListPoolMembers(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
