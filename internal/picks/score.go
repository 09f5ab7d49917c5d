package picks

import "github.com/intermernet/bowlpickem/internal/database"

// Score counts the picks whose chosen side won a finalized game. Picks for
// unknown games, unfinished games or games without a recorded winner score
// nothing.
func Score(picks []database.Pick, games []database.Game) int {
	return ScoreIndexed(picks, IndexGames(games))
}

// IndexGames maps game id to game.
func IndexGames(games []database.Game) map[string]*database.Game {
	index := make(map[string]*database.Game, len(games))
	for i := range games {
		index[games[i].ID] = &games[i]
	}
	return index
}

// ScoreIndexed is Score over a prebuilt game index, for callers scoring many
// users against the same schedule.
func ScoreIndexed(picks []database.Pick, games map[string]*database.Game) int {
	score := 0
	for _, pick := range picks {
		game, ok := games[pick.GameID]
		if !ok {
			continue
		}
		if winner, final := game.WinnerSide(); final && winner == pick.PickedTeam {
			score++
		}
	}
	return score
}
