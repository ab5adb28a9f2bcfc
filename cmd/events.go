/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/mq"
	"github.com/todo-app/apiserver/types"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail todo change events from the message queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		events := mq.NewTodoEvents(queue, cfg.MQ.Channel)
		logger.Info("consuming todo events", slog.String("channel", events.Channel()))

		err = events.Consume(ctx, func(ctx context.Context, event types.TodoEvent) error {
			logger.InfoContext(ctx, "todo event",
				slog.String("type", string(event.Type)),
				slog.Int("todo_id", event.TodoID),
				slog.Int("owner_id", event.OwnerID),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
