package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/intermernet/bowlpickem/internal/appmeta"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/events"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables from the system.")
	}

	cliApp := &cli.App{
		Name:  "bowlpickem-admin",
		Usage: "manage the bowl schedule and results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the SQLite database",
				Value:   "./data/bowlpickem.db",
				EnvVars: []string{"DB_PATH"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server to announce results on",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-token",
				EnvVars: []string{"NATS_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedGamesCommand(),
			listGamesCommand(),
			setScoreCommand(),
			finalizeCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openDB opens the database named by --db and makes sure the schema exists.
func openDB(c *cli.Context) (*database.Service, error) {
	db, err := database.NewService(c.String("db"))
	if err != nil {
		return nil, err
	}
	if err := db.InitMainDB(c.Context); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the database schema",
		Action: func(c *cli.Context) error {
			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func seedGamesCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed-games",
		Usage: "load or refresh the schedule from a YAML file",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.Path("file"))
			if err != nil {
				return err
			}
			defer f.Close()

			games, err := parseSchedule(f, time.Now().UTC())
			if err != nil {
				return err
			}

			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			for i := range games {
				if err := db.UpsertGame(c.Context, &games[i]); err != nil {
					return fmt.Errorf("seed %q: %w", games[i].ID, err)
				}
			}
			fmt.Printf("Seeded %d games.\n", len(games))
			return nil
		},
	}
}

func listGamesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-games",
		Usage: "print the schedule with results",
		Action: func(c *cli.Context) error {
			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			games, err := db.ListGames(c.Context)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tGAME\tKICKOFF\tMATCHUP\tSCORE\tWINNER")
			for _, g := range games {
				score := "-"
				if g.Team1Score.Valid && g.Team2Score.Valid {
					score = fmt.Sprintf("%d-%d", g.Team1Score.Int64, g.Team2Score.Int64)
				}
				winner := "-"
				if side, ok := g.WinnerSide(); ok {
					winner = string(side)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s vs %s\t%s\t%s\n",
					g.ID, g.Name, g.GameTime.Format(time.RFC3339), g.Team1, g.Team2, score, winner)
			}
			return w.Flush()
		},
	}
}

func setScoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "set-score",
		Usage: "record an in-progress score without finalizing the game",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Required: true},
			&cli.Int64Flag{Name: "team1", Required: true},
			&cli.Int64Flag{Name: "team2", Required: true},
		},
		Action: func(c *cli.Context) error {
			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := recordLiveScore(c.Context, db, c.String("game"), c.Int64("team1"), c.Int64("team2"), time.Now()); err != nil {
				return notFoundHint(c.String("game"), err)
			}
			fmt.Println("Score updated.")
			return nil
		},
	}
}

func finalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "finalize",
		Usage: "mark a game final with its winning side",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game", Required: true},
			&cli.StringFlag{Name: "winner", Usage: "team1 or team2", Required: true},
			&cli.Int64Flag{Name: "team1-score"},
			&cli.Int64Flag{Name: "team2-score"},
		},
		Action: func(c *cli.Context) error {
			winner := database.Side(c.String("winner"))
			if !winner.Valid() {
				return fmt.Errorf("winner must be %q or %q", database.SideTeam1, database.SideTeam2)
			}
			var team1Score, team2Score *int64
			if c.IsSet("team1-score") {
				v := c.Int64("team1-score")
				team1Score = &v
			}
			if c.IsSet("team2-score") {
				v := c.Int64("team2-score")
				team2Score = &v
			}

			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			gameID := c.String("game")
			now := time.Now().UTC()
			if err := db.FinalizeGame(c.Context, gameID, winner, team1Score, team2Score, now); err != nil {
				return notFoundHint(gameID, err)
			}
			fmt.Println("Game finalized.")

			return announceResult(c, events.ResultRecorded{GameID: gameID, Winner: string(winner), At: now})
		},
	}
}

// announceResult tells running servers about a new result so open
// leaderboards refresh. It is a no-op without --nats-url.
func announceResult(c *cli.Context, evt events.ResultRecorded) error {
	if c.String("nats-url") == "" {
		return nil
	}
	conn, err := events.Connect(c.String("nats-url"), c.String("nats-token"), "bowlpickem-admin")
	if err != nil {
		return fmt.Errorf("result saved but not announced: %w", err)
	}
	defer conn.Close()

	if err := events.NewNATSPublisher(conn).Publish(c.Context, events.SubjectResultRecorded, evt); err != nil {
		return fmt.Errorf("result saved but not announced: %w", err)
	}
	ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
	defer cancel()
	return conn.FlushWithContext(ctx)
}

// recordLiveScore stores an in-progress score and stamps the scores
// freshness shown to players.
func recordLiveScore(ctx context.Context, db *database.Service, gameID string, team1, team2 int64, now time.Time) error {
	if err := db.UpdateGameScore(ctx, gameID, team1, team2); err != nil {
		return err
	}
	return appmeta.NewService(db).MarkScoresUpdated(ctx, now)
}

func notFoundHint(gameID string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no game with id %q", gameID)
	}
	return err
}
