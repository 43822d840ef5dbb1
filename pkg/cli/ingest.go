package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/usecase"
)

func cmdIngest() *cli.Command {
	var uploadedBy string
	var app appFlags

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "uploaded-by",
			Usage:       "Uploader recorded on each document",
			Value:       "cli",
			Sources:     cli.EnvVars("MNEMOSYNE_UPLOADED_BY"),
			Destination: &uploadedBy,
		},
	}
	flags = append(flags, app.flags()...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest document files into the knowledge base",
		ArgsUsage: "<file> [<file> ...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return goerr.New("at least one file path is required", goerr.T(types.TagBadRequest))
			}

			rt, err := app.build(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to build pipeline")
			}
			defer rt.close(ctx)

			uploads := make([]usecase.Upload, 0, len(paths))
			for _, path := range paths {
				raw, err := os.ReadFile(path)
				if err != nil {
					return goerr.Wrap(err, "failed to read file", goerr.V("path", path))
				}
				uploads = append(uploads, usecase.Upload{
					FileName:    filepath.Base(path),
					ContentType: contentTypeForFile(path),
					Raw:         raw,
					UploadedBy:  uploadedBy,
				})
			}

			results, err := rt.uc.UploadDocuments(ctx, uploads)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					fmt.Printf("FAIL  %s: %v\n", result.FileName, result.Err)
					continue
				}
				fmt.Printf("OK    %s: %d chunks (%s)\n", result.FileName, result.ChunkCount, result.DocumentID)
			}
			if failed > 0 {
				return goerr.New("some documents failed to ingest",
					goerr.V("failed", failed), goerr.V("total", len(results)))
			}
			return nil
		},
	}
}

func contentTypeForFile(path string) string {
	switch filepath.Ext(path) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".txt", "":
		return "text/plain"
	default:
		return mime.TypeByExtension(filepath.Ext(path))
	}
}
