package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/cli/config"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/session"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

// cmdSessions operates on stored conversations only, so it wires just
// the repository; no provider credentials are needed.
func cmdSessions() *cli.Command {
	var repoCfg config.Repository
	var convCfg config.Conversation
	var dimension int

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension (pgvector backend only)",
			Value:       1536,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &dimension,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, convCfg.Flags()...)

	withRepo := func(ctx context.Context, fn func(ctx context.Context, mgr *session.Manager) error) error {
		repo, err := repoCfg.Configure(ctx, dimension)
		if err != nil {
			return goerr.Wrap(err, "failed to initialize repository")
		}
		defer func() {
			if err := repo.Close(ctx); err != nil {
				logging.Default().Error("failed to close repository", "error", err.Error())
			}
		}()

		mgr, err := session.New(repo.Session(), convCfg.SessionConfig())
		if err != nil {
			return err
		}
		return fn(ctx, mgr)
	}

	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect and maintain conversation sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored session IDs",
				Flags: flags,
				Action: func(ctx context.Context, c *cli.Command) error {
					return withRepo(ctx, func(ctx context.Context, mgr *session.Manager) error {
						sessions, err := mgr.List(ctx)
						if err != nil {
							return err
						}
						for _, s := range sessions {
							fmt.Printf("%s  %d turns  last active %s\n",
								s.ID, len(s.Turns), s.LastActiveAt.Format(time.RFC3339))
						}
						fmt.Printf("%d sessions\n", len(sessions))
						return nil
					})
				},
			},
			{
				Name:  "sweep",
				Usage: "Delete expired sessions",
				Flags: flags,
				Action: func(ctx context.Context, c *cli.Command) error {
					return withRepo(ctx, func(ctx context.Context, mgr *session.Manager) error {
						removed, err := mgr.Sweep(ctx)
						if err != nil {
							return err
						}
						fmt.Printf("removed %d expired sessions\n", removed)
						return nil
					})
				},
			},
		},
	}
}
