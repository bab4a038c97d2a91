package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowkit/internal/client"
	"github.com/shaiso/Flowkit/internal/domain"
)

// NewTriggerCmd создаёт группу команд trigger.
func NewTriggerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Manage workflow triggers",
	}

	cmd.AddCommand(
		newTriggerCreateCmd(app),
		newTriggerListCmd(app),
		newTriggerToggleCmd(app, true),
		newTriggerToggleCmd(app, false),
		newTriggerFireCmd(app),
	)
	return cmd
}

func newTriggerCreateCmd(app *App) *cobra.Command {
	var (
		triggerType string
		cronExpr    string
		timezone    string
		eventType   string
		webhookPath string
		inputs      []string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "create WORKFLOW_ID",
		Short: "Create a trigger for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			req := domain.CreateTriggerRequest{
				Type: domain.TriggerType(triggerType),
				Config: domain.TriggerConfig{
					CronExpression: cronExpr,
					Timezone:       timezone,
					EventType:      eventType,
					WebhookPath:    webhookPath,
				},
				Enabled: !disabled,
			}
			if len(values) > 0 {
				req.Config.InputData = values
			}

			trigger, err := app.Client().CreateTrigger(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out := app.Output()
			out.Success(fmt.Sprintf("Trigger created: %s", trigger.ID))
			pairs := [][2]string{
				{"ID", trigger.ID},
				{"Workflow", trigger.WorkflowID},
				{"Type", string(trigger.Type)},
				{"Enabled", strconv.FormatBool(trigger.Enabled)},
			}
			if trigger.Type == domain.TriggerTypeSchedule {
				pairs = append(pairs, [2]string{"Next run", nextRun(trigger)})
			}
			out.Fields(pairs, trigger)
			return nil
		},
	}

	cmd.Flags().StringVar(&triggerType, "type", string(domain.TriggerTypeSchedule), "schedule, event, manual or webhook")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (schedule)")
	cmd.Flags().StringVar(&timezone, "tz", "", "Timezone for cron, default UTC")
	cmd.Flags().StringVar(&eventType, "event", "", "Event type (event)")
	cmd.Flags().StringVar(&webhookPath, "path", "", "Webhook path (webhook)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input KEY=VALUE passed to each run (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the trigger disabled")
	return cmd
}

// nextRun — ближайший запуск: от оркестратора или посчитанный локально.
func nextRun(t *domain.Trigger) string {
	if t.NextRunAt != nil {
		return formatTime(t.NextRunAt)
	}
	next, err := client.NextRun(t.Config.CronExpression, t.Config.Timezone, time.Now())
	if err != nil {
		return "-"
	}
	return formatTime(&next)
}

func newTriggerListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list WORKFLOW_ID",
		Short: "List triggers of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			triggers, err := app.Client().ListTriggers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sort.Slice(triggers, func(i, j int) bool { return triggers[i].CreatedAt.Before(triggers[j].CreatedAt) })

			rows := make([][]string, len(triggers))
			for i := range triggers {
				t := &triggers[i]
				schedule := "-"
				if t.Type == domain.TriggerTypeSchedule {
					schedule = t.Config.CronExpression
				}
				rows[i] = []string{t.ID, string(t.Type), schedule, strconv.FormatBool(t.Enabled), formatTime(t.LastRunAt), nextRun(t)}
			}
			app.Output().Print([]string{"ID", "TYPE", "CRON", "ENABLED", "LAST_RUN", "NEXT_RUN"}, rows, triggers)
			return nil
		},
	}
}

func newTriggerToggleCmd(app *App, enable bool) *cobra.Command {
	use, short := "disable", "Disable a trigger"
	if enable {
		use, short = "enable", "Enable a trigger"
	}

	return &cobra.Command{
		Use:   use + " TRIGGER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.Client()
			var err error
			if enable {
				err = c.EnableTrigger(cmd.Context(), args[0])
			} else {
				err = c.DisableTrigger(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			app.Output().Success(fmt.Sprintf("Trigger %s %sd", args[0], use))
			return nil
		},
	}
}

func newTriggerFireCmd(app *App) *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:   "fire WORKFLOW_ID",
		Short: "Trigger a workflow run manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			resp, err := app.Client().TriggerWorkflow(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}

			out := app.Output()
			out.Success(fmt.Sprintf("Workflow %s triggered", args[0]))
			keys := make([]string, 0, len(resp))
			for k := range resp {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([][2]string, len(keys))
			for i, k := range keys {
				pairs[i] = [2]string{k, resp[k]}
			}
			out.Fields(pairs, resp)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input KEY=VALUE (repeatable)")
	return cmd
}
