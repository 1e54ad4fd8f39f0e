// Command wordlectl performs maintenance tasks against the score database.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wordlewise/config"
	"wordlewise/database"
	"wordlewise/logger"
	"wordlewise/services"
)

func main() {
	app := &cli.App{
		Name:  "wordlectl",
		Usage: "wordlewise maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			resetPasswordCommand(),
			createUserCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// toolkit is the service graph a command works with.
type toolkit struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	users  *services.UserService
	groups *services.GroupService
	scores *services.ScoreService
}

func newToolkit(cfg *config.Config, db *gorm.DB, log *zap.Logger) *toolkit {
	groups := services.NewGroupService(db, log)
	return &toolkit{
		cfg:    cfg,
		log:    log,
		db:     db,
		users:  services.NewUserService(db, groups, log),
		groups: groups,
		scores: services.NewScoreService(db, log),
	}
}

// withToolkit opens the configured database, migrates it and hands the
// services to fn.
func withToolkit(c *cli.Context, fn func(tk *toolkit) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	zl, err := logger.New(cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.Database, cfg.IsProduction(), zl)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.RunMigrations(db, zl); err != nil {
		return err
	}
	return fn(newToolkit(cfg, db, zl))
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the schema",
		Action: func(c *cli.Context) error {
			return withToolkit(c, func(tk *toolkit) error {
				fmt.Println("Schema is up to date")
				return nil
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "replace all data with sample users, groups and scores",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "allow seeding a production database"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed; 0 picks one"},
			&cli.IntFlag{Name: "days", Value: 30, Usage: "days of score history to generate"},
		},
		Action: func(c *cli.Context) error {
			return withToolkit(c, func(tk *toolkit) error {
				if tk.cfg.IsProduction() && !c.Bool("force") {
					return cli.Exit("refusing to seed a production database without --force", 1)
				}
				report, err := tk.seed(c.Context, gofakeit.New(c.Uint64("seed")), time.Now().UTC(), c.Int("days"))
				if err != nil {
					return err
				}
				for _, g := range report.Groups {
					fmt.Printf("Created group: %s (Invite Code: %s)\n", g.Name, g.InviteCode)
				}
				for username, n := range report.Scores {
					fmt.Printf("User %s: %d scores\n", username, n)
				}
				fmt.Println("Seeding complete!")
				return nil
			})
		},
	}
}

func resetPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-password",
		Usage: "set a new password for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withToolkit(c, func(tk *toolkit) error {
				user, err := tk.users.GetUserByUsername(c.Context, c.String("username"))
				if err != nil {
					return err
				}
				if err := tk.users.ResetPassword(c.Context, user.ID, c.String("password")); err != nil {
					return err
				}
				fmt.Printf("Password updated for %s\n", user.Username)
				return nil
			})
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "register a user, optionally as site admin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "forename", Required: true},
			&cli.BoolFlag{Name: "admin", Usage: "grant site-admin rights"},
		},
		Action: func(c *cli.Context) error {
			return withToolkit(c, func(tk *toolkit) error {
				user, err := tk.users.Register(c.Context, c.String("username"), c.String("password"), c.String("forename"))
				if err != nil {
					return err
				}
				if c.Bool("admin") {
					if err := tk.users.SetAdmin(c.Context, user.ID, true); err != nil {
						return err
					}
				}
				fmt.Printf("Created user %s (id %d, admin %t)\n", user.Username, user.ID, c.Bool("admin"))
				return nil
			})
		},
	}
}
