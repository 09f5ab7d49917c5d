package picks

import (
	"time"
	_ "time/tzdata" // schedule dates are shown in Eastern time regardless of host zone data

	"github.com/intermernet/bowlpickem/internal/database"
)

// ScheduleLocation is the zone games are grouped and labelled in.
var ScheduleLocation = mustLoadLocation("America/New_York")

// dateLabelLayout renders e.g. "Friday, Dec 26".
const dateLabelLayout = "Monday, Jan 2"

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// DateGroup is the games played on one calendar day.
type DateGroup struct {
	Label string          `json:"date"`
	Games []database.Game `json:"-"`
}

// GroupByDate buckets games by their Eastern calendar date. Groups appear in
// the order their first game appears in games, and games keep their order
// within a group.
func GroupByDate(games []database.Game) []DateGroup {
	groups := []DateGroup{}
	index := make(map[string]int)
	for _, game := range games {
		label := game.GameTime.In(ScheduleLocation).Format(dateLabelLayout)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Games = append(groups[i].Games, game)
	}
	return groups
}
