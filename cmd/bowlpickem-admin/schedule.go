package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intermernet/bowlpickem/internal/database"
)

// scheduleFile is the YAML layout accepted by seed-games.
type scheduleFile struct {
	Games []scheduleGame `yaml:"games"`
}

type scheduleGame struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Team1     string    `yaml:"team1"`
	Team2     string    `yaml:"team2"`
	GameTime  time.Time `yaml:"game_time"`
	Location  string    `yaml:"location"`
	TVChannel string    `yaml:"tv_channel"`
}

// parseSchedule decodes and validates a schedule. Every game needs an id so
// re-seeding updates rows instead of duplicating them.
func parseSchedule(r io.Reader, now time.Time) ([]database.Game, error) {
	var file scheduleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schedule is empty")
		}
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	seen := make(map[string]bool, len(file.Games))
	games := make([]database.Game, 0, len(file.Games))
	for i, g := range file.Games {
		id := strings.TrimSpace(g.ID)
		switch {
		case id == "":
			return nil, fmt.Errorf("game %d: id is required", i+1)
		case seen[id]:
			return nil, fmt.Errorf("game %d: duplicate id %q", i+1, id)
		case strings.TrimSpace(g.Name) == "":
			return nil, fmt.Errorf("game %q: name is required", id)
		case strings.TrimSpace(g.Team1) == "" || strings.TrimSpace(g.Team2) == "":
			return nil, fmt.Errorf("game %q: both teams are required", id)
		case g.GameTime.IsZero():
			return nil, fmt.Errorf("game %q: game_time is required", id)
		}
		seen[id] = true

		games = append(games, database.Game{
			ID:        id,
			Name:      strings.TrimSpace(g.Name),
			Team1:     strings.TrimSpace(g.Team1),
			Team2:     strings.TrimSpace(g.Team2),
			GameTime:  g.GameTime.UTC(),
			Location:  optional(g.Location),
			TVChannel: optional(g.TVChannel),
			CreatedAt: now,
		})
	}
	return games, nil
}

func optional(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
