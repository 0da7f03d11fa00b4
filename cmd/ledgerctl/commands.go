package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	domain "github.com/yasu-888/monologue-muser/internal/domain/ledger"
	"github.com/yasu-888/monologue-muser/internal/eventid"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/kafka"
	"github.com/yasu-888/monologue-muser/internal/ledger"

	"github.com/spf13/cobra"
)

func newDeriveCmd(a *app) *cobra.Command {
	var eventTime string

	cmd := &cobra.Command{
		Use:   "derive BUCKET OBJECT",
		Short: "Print the event identifier of an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := eventid.Validate(args[0], args[1]); err != nil {
				return err
			}
			return a.print(map[string]string{
				"event_id": eventid.Derive(args[0], args[1], eventTime),
			})
		},
	}
	cmd.Flags().StringVar(&eventTime, "event-time", "", "opaque event time mixed into the identifier")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get EVENT_ID",
		Short: "Show one ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.factory.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(entry)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		status    string
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := ledger.ListFilter{Status: domain.Status(status), Limit: limit}
			switch filter.Status {
			case "", domain.StatusProcessing, domain.StatusCompleted:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			if olderThan > 0 {
				filter.StartedBefore = time.Now().UTC().Add(-olderThan)
			}

			store, err := a.factory.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.print(entries)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "processing or completed")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only entries started at least this long ago")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of entries")
	return cmd
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete entries whose retention window has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.factory.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			purger, ok := store.(ledger.Purger)
			if !ok {
				return fmt.Errorf("backend %q expires entries natively", a.cfg.Ledger.Backend)
			}
			n, err := purger.PurgeExpired(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			return a.print(map[string]int64{"purged": n})
		},
	}
}

func newReleaseCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "release EVENT_ID",
		Short: "Delete a stuck processing entry so its next redelivery is admitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.factory.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := ledger.ReleaseStale(cmd.Context(), store, args[0], olderThan, time.Now().UTC())
			if errors.Is(err, ledger.ErrNotStale) {
				return fmt.Errorf("%w: status=%s started_at=%s", err, entry.Status, entry.StartedAt.Format(time.RFC3339))
			}
			if err != nil {
				return err
			}
			a.logger.Warn("released processing entry", "event_id", args[0],
				"bucket", entry.Bucket, "object", entry.Object, "collection", store.Collection())
			return a.print(entry)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "only release entries started at least this long ago")
	return cmd
}

func newEmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "emit BUCKET OBJECT",
		Short: "Publish an object-finalized notification to the consumer topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := eventid.Validate(args[0], args[1]); err != nil {
				return err
			}

			producer := kafka.NewProducer(kafka.Config{Brokers: a.cfg.Kafka.Brokers, Topic: a.cfg.Kafka.Topic})
			defer producer.Close()

			obj := event.Object{Bucket: args[0], Name: args[1], TimeCreated: time.Now().UTC().Format(time.RFC3339Nano)}
			if err := producer.PublishObject(cmd.Context(), obj); err != nil {
				return err
			}
			return a.print(map[string]string{
				"topic":    producer.Topic(),
				"event_id": a.eventID(obj),
			})
		},
	}
}
