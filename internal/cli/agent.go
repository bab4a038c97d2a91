package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Flowkit/internal/domain"
)

// NewAgentCmd создаёт группу команд agent.
func NewAgentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(
		newAgentDeployCmd(app),
		newAgentLifecycleCmd(app, "start", "Start an agent"),
		newAgentLifecycleCmd(app, "stop", "Stop an agent"),
		newAgentShowCmd(app),
		newAgentLogsCmd(app),
	)
	return cmd
}

func printAgent(out *Output, a *domain.Agent) {
	out.Fields([][2]string{
		{"ID", a.ID},
		{"Name", a.Name},
		{"Image", a.Image},
		{"Status", string(a.Status)},
		{"Created", formatTime(&a.CreatedAt)},
	}, a)
}

func newAgentDeployCmd(app *App) *cobra.Command {
	var (
		name       string
		image      string
		env        []string
		cpu        int64
		memory     int64
		start      bool
		workflowID string
		stepID     string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an agent from an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if image == "" {
				return fmt.Errorf("--image is required")
			}
			vars, err := parsePairs(env)
			if err != nil {
				return err
			}
			if name == "" {
				name = "agent-" + uuid.NewString()[:8]
			}

			c := app.Client()
			agent, err := c.DeployAgent(cmd.Context(), domain.DeployAgentRequest{
				Name:        name,
				Image:       image,
				EnvVars:     vars,
				CPULimit:    cpu,
				MemoryLimit: memory,
				WorkflowID:  workflowID,
				StepID:      stepID,
			})
			if err != nil {
				return err
			}

			out := app.Output()
			out.Success(fmt.Sprintf("Agent deployed: %s", agent.ID))
			if start {
				if err := c.StartAgent(cmd.Context(), agent.ID); err != nil {
					return fmt.Errorf("start agent %s: %w", agent.ID, err)
				}
				out.Success(fmt.Sprintf("Agent started: %s", agent.ID))
			}
			printAgent(out, agent)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent name (generated if empty)")
	cmd.Flags().StringVar(&image, "image", "", "Container image")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().Int64Var(&cpu, "cpu", 0, "CPU limit")
	cmd.Flags().Int64Var(&memory, "memory", 0, "Memory limit in bytes")
	cmd.Flags().BoolVar(&start, "start", false, "Start the agent after deploying")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Owning workflow, exported to the agent as WORKFLOW_ID")
	cmd.Flags().StringVar(&stepID, "step", "", "Owning step, exported to the agent as STEP_ID")
	return cmd
}

func newAgentLifecycleCmd(app *App, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " AGENT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.Client()
			var err error
			if action == "start" {
				err = c.StartAgent(cmd.Context(), args[0])
			} else {
				err = c.StopAgent(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			app.Output().Success(fmt.Sprintf("Agent %s: %s requested", args[0], action))
			return nil
		},
	}
}

func newAgentShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show AGENT_ID",
		Short: "Show agent details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := app.Client().GetAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAgent(app.Output(), agent)
			return nil
		},
	}
}

func newAgentLogsCmd(app *App) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs AGENT_ID",
		Short: "Print agent logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := app.Client().GetAgentLogs(cmd.Context(), args[0], follow)
			if err != nil {
				return err
			}
			out := app.Output()
			if out.JSONMode() {
				out.JSON(map[string]string{"agent_id": args[0], "logs": logs})
				return nil
			}
			out.Text(logs)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	return cmd
}
