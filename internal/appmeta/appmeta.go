// Package appmeta reads and writes service-wide metadata such as when game
// results were last recorded.
package appmeta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/picks"
)

type Store interface {
	GetMetadata(ctx context.Context, key string) (*database.AppMetadata, error)
	SetMetadata(ctx context.Context, key, value string, at time.Time) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// LastScoresUpdate returns when results were last recorded. ok is false when
// no result has been recorded yet.
func (s *Service) LastScoresUpdate(ctx context.Context) (t time.Time, ok bool, err error) {
	meta, err := s.store.GetMetadata(ctx, database.MetadataLastScoresUpdate)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get metadata: %w", err)
	}
	if !meta.Value.Valid || meta.Value.String == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339, meta.Value.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", database.MetadataLastScoresUpdate, err)
	}
	return t, true, nil
}

// MarkScoresUpdated records t as the last time results changed.
func (s *Service) MarkScoresUpdated(ctx context.Context, t time.Time) error {
	t = t.UTC()
	return s.store.SetMetadata(ctx, database.MetadataLastScoresUpdate, t.Format(time.RFC3339), t)
}

// FormatRelative renders t relative to now: "just now", "N min ago",
// "N hr ago", and after a day the Eastern calendar date.
func FormatRelative(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return strconv.Itoa(int(diff/time.Minute)) + " min ago"
	case diff < 24*time.Hour:
		return strconv.Itoa(int(diff/time.Hour)) + " hr ago"
	default:
		return t.In(picks.ScheduleLocation).Format("1/2/2006")
	}
}
