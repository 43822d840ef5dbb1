package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	httpctrl "github.com/athenaeum-lab/mnemosyne/pkg/controller/http"
	"github.com/athenaeum-lab/mnemosyne/pkg/service/worker"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var maxUploadSize int64
	var schemaRefreshInterval time.Duration
	var app appFlags

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.Int64Flag{
			Name:        "max-upload-size",
			Usage:       "Maximum accepted upload body in bytes",
			Value:       32 << 20,
			Sources:     cli.EnvVars("MNEMOSYNE_MAX_UPLOAD_SIZE"),
			Destination: &maxUploadSize,
		},
		&cli.DurationFlag{
			Name:        "schema-refresh-interval",
			Usage:       "How often relational source schemas are re-analyzed",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("MNEMOSYNE_SCHEMA_REFRESH_INTERVAL"),
			Destination: &schemaRefreshInterval,
		},
	}
	flags = append(flags, app.flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := app.build(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to build pipeline")
			}
			defer rt.close(ctx)

			// Keep relational schemas current while the server runs
			var schemaWorker *worker.SchemaRefreshWorker
			if rt.coordinator != nil {
				schemaWorker = worker.NewSchemaRefreshWorker(rt.coordinator, schemaRefreshInterval)
				if err := schemaWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start schema refresh worker")
				}
			}

			handler := httpctrl.New(rt.uc, httpctrl.WithMaxUploadSize(maxUploadSize))
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if schemaWorker != nil {
					schemaWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
