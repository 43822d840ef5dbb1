package config

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

// Sources holds CLI flags for the relational source configuration file
type Sources struct {
	path string
}

// Flags returns CLI flags for source configuration
func (s *Sources) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sources-config",
			Usage:       "Path to the TOML file describing relational database sources",
			Category:    "Sources",
			Sources:     cli.EnvVars("MNEMOSYNE_SOURCES_CONFIG"),
			Destination: &s.path,
		},
	}
}

type sourcesFile struct {
	Sources []sqlbridge.Source `toml:"source"`
}

// Configure loads the sources file and builds the query coordinator.
// Returns nil when no file is configured; relational context gathering
// is simply disabled in that case.
func (s *Sources) Configure(ctx context.Context, generator sqlbridge.Generator) (*sqlbridge.Coordinator, error) {
	if s.path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read sources config", goerr.V("path", s.path))
	}

	var file sourcesFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse sources config", goerr.V("path", s.path))
	}
	if len(file.Sources) == 0 {
		logging.Default().Warn("sources config contains no sources", "path", s.path)
		return nil, nil
	}

	coordinator, err := sqlbridge.New(ctx, generator, file.Sources)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize query coordinator")
	}

	logging.Default().Info("relational sources configured", "count", len(file.Sources))
	return coordinator, nil
}
