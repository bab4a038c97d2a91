package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowkit/internal/mq"
)

// NewEventsCmd создаёт группу команд events.
func NewEventsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe task outcome events from the broker",
	}
	cmd.AddCommand(newEventsWatchCmd(app))
	return cmd
}

func newEventsWatchCmd(app *App) *cobra.Command {
	var (
		workflowID string
		onlyErrors bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream task outcomes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := app.Logger()

			conn, err := mq.Dial(app.Settings().AMQPURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}

			pattern := mq.RoutingKeyAllOutcomes
			if onlyErrors {
				pattern = mq.OutcomeRoutingKey("error")
			}
			queue, err := mq.DeclareWatchQueue(ctx, conn, pattern)
			if err != nil {
				return err
			}

			out := app.Output()
			handler := outcomePrinter(out, workflowID)
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{Queue: queue, Handler: handler, Prefetch: 10})

			out.Success(fmt.Sprintf("Watching %s (Ctrl+C to stop)", mq.ExchangeTasks))
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Only show events of this workflow")
	cmd.Flags().BoolVar(&onlyErrors, "errors", false, "Only show error outcomes")
	return cmd
}

// outcomePrinter печатает исходы tasks, отфильтрованные по workflow.
func outcomePrinter(out *Output, workflowID string) mq.Handler {
	return func(_ context.Context, msg *mq.Message) error {
		if msg.Type != mq.MessageTypeTaskOutcome {
			return nil
		}
		p, err := mq.Decode[mq.TaskOutcomePayload](msg)
		if err != nil {
			return err
		}
		if workflowID != "" && p.WorkflowID != workflowID {
			return nil
		}

		if out.JSONMode() {
			out.JSON(p)
			return nil
		}
		line := fmt.Sprintf("%s  %-9s  wf=%s step=%s task=%s type=%s %dms",
			msg.Timestamp.Local().Format(time.TimeOnly), p.Outcome,
			orDash(p.WorkflowID), orDash(p.StepID), p.TaskID, orDash(p.Type), p.DurationMs)
		if p.Error != "" {
			line += "  error: " + p.Error
		}
		out.Text(line)
		return nil
	}
}
