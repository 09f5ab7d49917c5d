// Package teamlogo maps bowl team names to ESPN CDN logo images.
package teamlogo

import (
	"strconv"
	"strings"
)

const (
	baseURL     = "https://a.espncdn.com/i/teamlogos/ncaa/500"
	darkBaseURL = baseURL + "-dark"
)

// espnTeamIDs keys are team names exactly as they are stored on games.
// Several schools are listed under more than one common name.
var espnTeamIDs = map[string]int{
	"Alabama":           333,
	"App State":         2026,
	"Appalachian State": 2026,
	"Arizona":           12,
	"Arizona State":     9,
	"Army":              349,

	"BYU":           252,
	"Brigham Young": 252,

	"Central Michigan": 2117,
	"Cincinnati":       2132,
	"Clemson":          228,
	"Coastal Carolina": 324,

	"Duke": 150,

	"East Carolina": 151,
	"ECU":           151,

	"FIU":                   2229,
	"Florida International": 2229,
	"Fresno State":          278,

	"Georgia":          61,
	"Georgia Southern": 290,
	"Georgia Tech":     59,

	"Houston": 248,

	"Illinois": 356,
	"Indiana":  84,
	"Iowa":     2294,

	"Louisiana Tech":  2348,
	"LSU":             99,
	"Louisiana State": 99,

	"Miami":             2390,
	"Miami (FL)":        2390,
	"Miami (OH)":        193,
	"Michigan":          130,
	"Minnesota":         135,
	"Mississippi State": 344,
	"Miss State":        344,
	"Missouri":          142,
	"Mizzou":            142,

	"Navy":         2426,
	"Nebraska":     158,
	"New Mexico":   167,
	"North Texas":  249,
	"Northwestern": 77,

	"Ohio State": 194,
	"OSU":        194,
	"Ole Miss":   145,
	"Oregon":     2483,

	"Penn State": 213,
	"Pitt":       221,
	"Pittsburgh": 221,

	"Rice": 242,

	"San Diego State":    21,
	"SDSU":               21,
	"SMU":                2567,
	"Southern Methodist": 2567,

	"TCU":             2628,
	"Texas Christian": 2628,
	"Tennessee":       2633,
	"Texas":           251,
	"Texas State":     326,
	"Texas Tech":      2641,

	"UConn":          41,
	"Connecticut":    41,
	"USC":            30,
	"Utah":           254,
	"UTSA":           2636,
	"UT San Antonio": 2636,

	"Vanderbilt": 238,
	"Virginia":   258,
	"UVA":        258,

	"Wake Forest": 154,
}

func lookup(team string) (int, bool) {
	id, ok := espnTeamIDs[strings.TrimSpace(team)]
	return id, ok
}

// URL returns the standard logo for team.
func URL(team string) (string, bool) {
	id, ok := lookup(team)
	if !ok {
		return "", false
	}
	return baseURL + "/" + strconv.Itoa(id) + ".png", true
}

// DarkURL returns the logo variant drawn for dark backgrounds.
func DarkURL(team string) (string, bool) {
	id, ok := lookup(team)
	if !ok {
		return "", false
	}
	return darkBaseURL + "/" + strconv.Itoa(id) + ".png", true
}

func Has(team string) bool {
	_, ok := lookup(team)
	return ok
}
