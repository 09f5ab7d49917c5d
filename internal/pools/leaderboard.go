package pools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/intermernet/bowlpickem/internal/picks"
	"github.com/sirupsen/logrus"
)

// Entry is one ranked row of a pool leaderboard.
type Entry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Score       int    `json:"score"`
	PicksCount  int    `json:"picksCount"`
}

// LeaderboardBuilder computes pool standings from stored picks and results.
type LeaderboardBuilder struct {
	store   Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewLeaderboardBuilder(store Store, m *metrics.Metrics, logger logrus.FieldLogger) *LeaderboardBuilder {
	return &LeaderboardBuilder{store: store, metrics: m, logger: logger}
}

// Build returns one entry per member of poolID, ranked by RankEntries.
// Members whose profile is missing are left out.
func (b *LeaderboardBuilder) Build(ctx context.Context, poolID string) ([]Entry, error) {
	start := time.Now()
	defer func() { b.metrics.ObserveLeaderboardBuild(time.Since(start)) }()

	members, err := b.store.ListPoolMembers(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if len(members) == 0 {
		return []Entry{}, nil
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}

	profiles, err := b.store.ListProfilesByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	allPicks, err := b.store.ListPicksByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	games, err := b.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	picksByUser := make(map[string][]database.Pick, len(userIDs))
	for _, p := range allPicks {
		picksByUser[p.UserID] = append(picksByUser[p.UserID], p)
	}
	index := picks.IndexGames(games)

	found := make(map[string]bool, len(profiles))
	entries := make([]Entry, 0, len(profiles))
	for _, profile := range profiles {
		found[profile.ID] = true
		userPicks := picksByUser[profile.ID]
		entries = append(entries, Entry{
			UserID:      profile.ID,
			DisplayName: DisplayName(&profile),
			Email:       profile.Email,
			Score:       picks.ScoreIndexed(userPicks, index),
			PicksCount:  len(userPicks),
		})
	}
	for _, id := range userIDs {
		if !found[id] {
			b.logger.WithFields(logrus.Fields{
				"pool_id": poolID,
				"user_id": id,
			}).Warn("Pool member has no profile, leaving off leaderboard")
		}
	}

	RankEntries(entries)
	return entries, nil
}

// RankEntries sorts entries by score, then picks made, both descending, then
// by user id so equal rows always come out in the same order.
func RankEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PicksCount != b.PicksCount {
			return a.PicksCount > b.PicksCount
		}
		return a.UserID < b.UserID
	})
}

// DisplayName is the profile's display name, or the part of its email before
// the @ when none is set.
func DisplayName(p *database.Profile) string {
	if p.DisplayName.Valid {
		if name := strings.TrimSpace(p.DisplayName.String); name != "" {
			return name
		}
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}
