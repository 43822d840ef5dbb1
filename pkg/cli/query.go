package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

func cmdQuery() *cli.Command {
	var sessionID string
	var app appFlags

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session ID to continue an earlier conversation",
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
	}
	flags = append(flags, app.flags()...)

	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Ask a one-shot question against the knowledge base",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("a question is required", goerr.T(types.TagBadRequest))
			}

			rt, err := app.build(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to build pipeline")
			}
			defer rt.close(ctx)

			resp, err := rt.uc.QueryIntelligence(ctx, types.SessionID(sessionID), question)
			if err != nil {
				return err
			}

			fmt.Println(resp.Answer)
			if len(resp.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, source := range resp.Sources {
					fmt.Printf("  [%d] %s (score %.3f)\n", i+1, source.FileName, source.Score)
				}
			}
			fmt.Printf("\nSession: %s\n", resp.SessionID)
			return nil
		},
	}
}
