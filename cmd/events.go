/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/moodlocation/apiserver/config"
	"github.com/moodlocation/apiserver/internal/mq"
	"github.com/moodlocation/apiserver/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var eventTypes = []string{
	services.EventAccountRegistered,
	services.EventProfileUpdated,
	services.EventHistoryRecorded,
}

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events published by the server",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [event-type...]",
	Short: "Consume domain events from the configured broker and log them",
	Long: `Consume domain events from the broker selected by MQ_BACKEND and log
each one. Without arguments every event type is consumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.Log)

		channels := eventTypes
		if len(args) > 0 {
			channels = args
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		group, ctx := errgroup.WithContext(ctx)
		for _, channel := range channels {
			group.Go(func() error {
				return broker.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
					var event services.Event
					if err := json.Unmarshal(msg.Data, &event); err != nil {
						logger.Warn("undecodable event", "channel", channel, "id", msg.ID, "error", err)
						return nil
					}
					logger.Info("event",
						"channel", channel,
						"id", msg.ID,
						"type", event.Type,
						"occurred_at", event.OccurredAt,
						"payload", event.Payload,
					)
					return nil
				})
			})
		}

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume events: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
