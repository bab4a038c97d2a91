package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/engine"
	"github.com/shaiso/Flowkit/internal/mapreduce"
	"github.com/shaiso/Flowkit/internal/repo"
)

// errWorkflowUnsuccessful — wait завершился не в completed.
var errWorkflowUnsuccessful = errors.New("workflow did not complete successfully")

// NewWorkflowCmd создаёт группу команд workflow.
func NewWorkflowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowValidateCmd(app),
		newWorkflowCreateCmd(app),
		newWorkflowListCmd(app),
		newWorkflowShowCmd(app),
		newWorkflowStartCmd(app),
		newWorkflowWaitCmd(app),
		newWorkflowMonitorCmd(app),
		newWorkflowJobsCmd(app),
		newWorkflowMetricsCmd(app),
		newWorkflowHistoryCmd(app),
		newWorkflowStatsCmd(app),
		newWorkflowStateCmd(app),
		newWorkflowSummaryCmd(app),
		newWorkflowArchiveCmd(app),
		newWorkflowArchivedCmd(app),
	)
	return cmd
}

func loadDefinition(path string) (*engine.Definition, error) {
	if path == "" {
		return nil, errors.New("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return engine.Parse(data)
}

func newWorkflowValidateCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow file and print the execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(file)
			if err != nil {
				return err
			}
			dag, err := engine.BuildDAG(def)
			if err != nil {
				return err
			}

			out := app.Output()
			order := dag.OrderIDs()
			rows := make([][]string, len(order))
			for i, name := range order {
				step := def.Step(name)
				rows[i] = []string{strconv.Itoa(i + 1), step.Name, string(step.Kind), joinOrDash(step.DependsOn)}
			}
			out.Print([]string{"#", "STEP", "KIND", "DEPENDS_ON"}, rows, def)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition (JSON)")
	return cmd
}

func newWorkflowCreateCmd(app *App) *cobra.Command {
	var (
		file   string
		start  bool
		inputs []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow from a definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(file)
			if err != nil {
				return err
			}
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			c := app.Client()
			out := app.Output()

			if start {
				exec, err := c.RunWorkflow(cmd.Context(), def, values)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Workflow started: %s", exec.ID()))
				printWorkflow(out, exec.Workflow())
				return nil
			}

			req, err := engine.Compile(def)
			if err != nil {
				return err
			}
			wf, err := c.CreateWorkflow(cmd.Context(), req)
			if err != nil {
				return err
			}
			for key, value := range values {
				if err := c.UpdateWorkflowState(cmd.Context(), wf.ID, key, value); err != nil {
					return fmt.Errorf("seed state %s: %w", key, err)
				}
			}

			out.Success(fmt.Sprintf("Workflow created: %s", wf.ID))
			printWorkflow(out, wf)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition (JSON)")
	cmd.Flags().BoolVar(&start, "start", false, "Start the workflow right after creation")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Initial state KEY=VALUE (repeatable)")
	return cmd
}

func newWorkflowListCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.WorkflowStatus
			if status != "" {
				parsed, ok := domain.ParseWorkflowStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = parsed
			}

			workflows, err := app.Client().ListWorkflows(cmd.Context(), filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{wf.ID, wf.Name, string(wf.Status), strconv.Itoa(len(wf.Steps)), formatTime(&wf.CreatedAt)}
			}
			app.Output().Print([]string{"ID", "NAME", "STATUS", "STEPS", "CREATED"}, rows, workflows)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func printWorkflow(out *Output, wf *domain.Workflow) {
	if out.JSONMode() {
		out.JSON(wf)
		return
	}
	out.Fields([][2]string{
		{"ID", wf.ID},
		{"Name", wf.Name},
		{"Status", string(wf.Status)},
		{"Steps", strconv.Itoa(len(wf.Steps))},
		{"Started", formatTime(wf.StartedAt)},
		{"Completed", formatTime(wf.CompletedAt)},
	}, wf)
	if len(wf.Steps) == 0 {
		return
	}
	rows := make([][]string, len(wf.Steps))
	for i, s := range wf.Steps {
		rows[i] = []string{s.ID, string(s.Type), orDash(string(s.Status)), joinOrDash(s.DependsOn), orDash(s.Error)}
	}
	out.Text("")
	out.Table([]string{"STEP", "TYPE", "STATUS", "DEPENDS_ON", "ERROR"}, rows)
}

func newWorkflowShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKFLOW_ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.Client().GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printWorkflow(app.Output(), wf)
			return nil
		},
	}
}

func newWorkflowStartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start WORKFLOW_ID",
		Short: "Start a pending workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.Client().StartWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := app.Output()
			out.Success(fmt.Sprintf("Workflow started: %s", args[0]))
			if out.JSONMode() {
				out.JSON(resp)
			}
			return nil
		},
	}
}

func newWorkflowWaitCmd(app *App) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait WORKFLOW_ID",
		Short: "Wait until the workflow finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := app.Client().Attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := exec.WaitForCompletion(cmd.Context(), timeout)
			if err != nil {
				return err
			}

			app.Output().Fields([][2]string{
				{"Workflow", result.WorkflowID},
				{"Status", string(result.Status)},
				{"Duration", result.Duration.Round(time.Millisecond).String()},
				{"State keys", strconv.Itoa(len(result.State))},
			}, result)

			if result.Status != domain.WorkflowStatusCompleted {
				return fmt.Errorf("%w: %s", errWorkflowUnsuccessful, result.Status)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up after this long")
	return cmd
}

func newWorkflowMonitorCmd(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor WORKFLOW_ID",
		Short: "Print progress until the workflow finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := app.Client().Attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := app.Output()
			metrics, err := exec.Monitor(cmd.Context(), func(wf *domain.Workflow, m *domain.WorkflowMetrics) {
				if out.JSONMode() || m == nil {
					return
				}
				out.Text(fmt.Sprintf("%s  %-9s  %d/%d steps done, %d running, %d failed",
					time.Now().Format(time.TimeOnly), wf.Status,
					m.CompletedSteps, m.TotalSteps, m.RunningSteps, m.FailedSteps))
			}, interval)
			if err != nil {
				return err
			}
			if out.JSONMode() {
				out.JSON(metrics)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Polling interval")
	return cmd
}

func newWorkflowJobsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs WORKFLOW_ID",
		Short: "List agent jobs of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := app.Client().GetWorkflowJobs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.ID, j.StepID, orDash(j.AgentID), string(j.Status), formatTime(j.StartedAt), orDash(j.Error)}
			}
			app.Output().Print([]string{"ID", "STEP", "AGENT", "STATUS", "STARTED", "ERROR"}, rows, jobs)
			return nil
		},
	}
}

func newWorkflowMetricsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics WORKFLOW_ID",
		Short: "Show workflow metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Client().GetWorkflowMetrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.Output().Fields([][2]string{
				{"Status", string(m.Status)},
				{"Steps", strconv.Itoa(m.TotalSteps)},
				{"Completed", strconv.Itoa(m.CompletedSteps)},
				{"Running", strconv.Itoa(m.RunningSteps)},
				{"Failed", strconv.Itoa(m.FailedSteps)},
				{"Jobs", strconv.Itoa(m.TotalJobs)},
				{"Duration", m.Duration.String()},
			}, m)
			return nil
		},
	}
}

func newWorkflowHistoryCmd(app *App) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show metrics of recent workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.Client().GetWorkflowHistory(cmd.Context(), window)
			if err != nil {
				return err
			}
			rows := make([][]string, len(history))
			for i, m := range history {
				rows[i] = []string{m.WorkflowID, string(m.Status), strconv.Itoa(m.TotalSteps), strconv.Itoa(m.FailedSteps), m.Duration.String()}
			}
			app.Output().Print([]string{"WORKFLOW", "STATUS", "STEPS", "FAILED", "DURATION"}, rows, history)
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", time.Hour, "Look-back window")
	return cmd
}

func newWorkflowStatsCmd(app *App) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate workflow metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Client().GetAggregateMetrics(cmd.Context(), window)
			if err != nil {
				return err
			}
			app.Output().Fields([][2]string{
				{"Period", m.Period},
				{"Workflows", strconv.Itoa(m.TotalWorkflows)},
				{"Completed", strconv.Itoa(m.CompletedWorkflows)},
				{"Failed", strconv.Itoa(m.FailedWorkflows)},
				{"Success rate", strconv.FormatFloat(m.SuccessRate, 'f', 1, 64) + "%"},
				{"Avg duration", orDash(m.AvgDuration)},
				{"Agents deployed", strconv.Itoa(m.AgentsDeployed)},
				{"Agents reused", strconv.Itoa(m.AgentsReused)},
				{"Pool efficiency", strconv.FormatFloat(m.PoolEfficiency, 'f', 1, 64) + "%"},
			}, m)
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", time.Hour, "Look-back window")
	return cmd
}

func newWorkflowStateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read or write workflow state",
	}

	get := &cobra.Command{
		Use:   "get WORKFLOW_ID [KEY]",
		Short: "Print one state key or the whole state",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.Client()
			out := app.Output()

			if len(args) == 2 {
				value, err := c.GetWorkflowState(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				out.JSON(value)
				return nil
			}

			state, err := c.GetWorkflowStateAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(state))
			for k := range state {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, len(keys))
			for i, k := range keys {
				rows[i] = []string{k, string(state[k].Kind()), truncate(string(state[k]), 60)}
			}
			out.Print([]string{"KEY", "KIND", "VALUE"}, rows, state)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set WORKFLOW_ID KEY VALUE",
		Short: "Write a state key (VALUE is JSON or plain text)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Client().UpdateWorkflowState(cmd.Context(), args[0], args[1], domain.ParseValue(args[2])); err != nil {
				return err
			}
			app.Output().Success(fmt.Sprintf("State %s updated", args[1]))
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newWorkflowSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary WORKFLOW_ID",
		Short: "Show the map-reduce final summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := app.Client().GetWorkflowState(cmd.Context(), args[0], mapreduce.KeyFinalSummary)
			if err != nil {
				if errors.Is(err, domain.ErrKeyNotFound) {
					return fmt.Errorf("workflow %s has no %s yet", args[0], mapreduce.KeyFinalSummary)
				}
				return err
			}

			var s mapreduce.Summary
			if err := value.Decode(&s); err != nil {
				return err
			}

			out := app.Output()
			if out.JSONMode() {
				out.JSON(s)
				return nil
			}
			out.Fields([][2]string{
				{"Processed", strconv.Itoa(s.TotalURLsProcessed)},
				{"Failed", strconv.Itoa(s.TotalURLsFailed)},
				{"Success rate", strconv.FormatFloat(s.SuccessRate, 'f', 2, 64) + "%"},
				{"Total words", strconv.Itoa(s.TotalWords)},
				{"Total bytes", strconv.Itoa(s.TotalBytes)},
				{"Words/page", fmt.Sprintf("avg %.1f, min %d, max %d", s.AverageWordsPerPage, s.MinWordsPerPage, s.MaxWordsPerPage)},
			}, s)

			ranked := s.TopWordsRanked
			if len(ranked) == 0 {
				ranked = rankedFromMap(s.Top20Words)
			}
			if len(ranked) > 0 {
				rows := make([][]string, len(ranked))
				for i, wc := range ranked {
					rows[i] = []string{strconv.Itoa(i + 1), wc.Word, strconv.Itoa(wc.Count)}
				}
				out.Text("")
				out.Table([]string{"#", "WORD", "COUNT"}, rows)
			}
			return nil
		},
	}
}

func newWorkflowArchiveCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "archive WORKFLOW_ID",
		Short: "Save a finished workflow snapshot to the archive database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			wf, err := app.Client().GetWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			run, err := repo.NewArchivedRun(wf, time.Now(), force)
			if err != nil {
				return err
			}
			if err := countMapRecords(cmd, app, run); err != nil {
				return err
			}

			pool, err := repo.NewPoolURL(ctx, app.Settings().DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			archive := repo.NewArchiveRepo(pool)
			if err := archive.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := archive.Save(ctx, run); err != nil {
				return err
			}

			app.Output().Success(fmt.Sprintf("Workflow %s archived (%d results, %d errors)", run.WorkflowID, run.MapResults, run.MapErrors))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Archive even if the workflow is still running")
	return cmd
}

// countMapRecords заполняет счётчики map-записей: из хранилища, если оно
// доступно, иначе из final_summary.
func countMapRecords(cmd *cobra.Command, app *App, run *repo.ArchivedRun) error {
	st, err := app.Store(cmd.Context())
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		state := st.State(run.WorkflowID)
		if run.MapResults, err = state.ListLen(cmd.Context(), mapreduce.ListResults); err != nil {
			return err
		}
		if run.MapErrors, err = state.ListLen(cmd.Context(), mapreduce.ListErrors); err != nil {
			return err
		}
		return nil
	}

	if run.FinalSummary.IsNull() {
		return nil
	}
	var s mapreduce.Summary
	if err := run.FinalSummary.Decode(&s); err != nil {
		return fmt.Errorf("decode %s: %w", mapreduce.KeyFinalSummary, err)
	}
	run.MapResults = int64(s.TotalURLsProcessed)
	run.MapErrors = int64(s.TotalURLsFailed)
	return nil
}

func newWorkflowArchivedCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "archived",
		Short: "List archived workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := repo.NewPoolURL(cmd.Context(), app.Settings().DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := repo.NewArchiveRepo(pool).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.WorkflowID, r.Name, string(r.Status),
					strconv.FormatInt(r.MapResults, 10), strconv.FormatInt(r.MapErrors, 10),
					formatTime(&r.ArchivedAt),
				}
			}
			app.Output().Print([]string{"ID", "NAME", "STATUS", "RESULTS", "ERRORS", "ARCHIVED"}, rows, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	return cmd
}

func rankedFromMap(freq map[string]int) []mapreduce.WordCount {
	out := make([]mapreduce.WordCount, 0, len(freq))
	for w, c := range freq {
		out = append(out, mapreduce.WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
