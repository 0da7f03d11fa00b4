package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yasu-888/monologue-muser/internal/application/factories/infrastructure"
	"github.com/yasu-888/monologue-muser/internal/config"
	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/eventid"

	"github.com/spf13/cobra"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	factory *infrastructure.Factory
	out     io.Writer
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and maintain the event dedup ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
			a.factory = infrastructure.NewFactory(cfg, a.logger)
			return nil
		},
	}

	root.AddCommand(
		newDeriveCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newPurgeCmd(a),
		newReleaseCmd(a),
		newEmitCmd(a),
	)
	return root, a
}

func (a *app) close() {
	if a.factory != nil {
		a.factory.Close()
	}
}

// eventID derives the identifier the pipeline will use for obj under the
// loaded configuration.
func (a *app) eventID(obj event.Object) string {
	var eventTime string
	if a.cfg != nil && a.cfg.Ledger.KeyWithEventTime {
		eventTime = obj.EventTime()
	}
	return eventid.Derive(obj.Bucket, obj.Name, eventTime)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
