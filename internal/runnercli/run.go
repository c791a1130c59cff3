package runnercli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/midoriai/agents-runner/internal/events"
	"github.com/midoriai/agents-runner/internal/supervisor"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a task to an environment and stream it to completion",
	RunE:  runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("env", "", "environment ID to run against (required)")
	runCmd.Flags().String("prompt", "", "prompt to hand to the agent CLI (required)")
	runCmd.Flags().String("package-path", "", "monorepo package path to scope the container workdir to")
	runCmd.Flags().Bool("follow", true, "stream state/log events until the task reaches a terminal status")
	_ = runCmd.MarkFlagRequired("env")
	_ = runCmd.MarkFlagRequired("prompt")
}

func runTask(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	envID, _ := cmd.Flags().GetString("env")
	prompt, _ := cmd.Flags().GetString("prompt")
	packagePath, _ := cmd.Flags().GetString("package-path")
	follow, _ := cmd.Flags().GetBool("follow")

	_, envs, err := rt.Store.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	env, ok := envs[envID]
	if !ok {
		return fmt.Errorf("unknown environment %q (see `runnerctl env list`)", envID)
	}
	if err := env.Validate(); err != nil {
		return err
	}
	if !rt.Supervisor.Admit(env) {
		return fmt.Errorf("environment %q is at capacity (max_agents_running=%d)", envID, env.MaxAgentsRunning)
	}

	taskID := supervisor.NewTaskID()
	task := taskmodel.NewTask(taskID, envID, prompt, time.Now().UTC())
	task.PackagePath = packagePath
	if err := rt.Store.SaveTask(task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	fmt.Printf("task %s submitted to environment %s\n", taskID, envID)

	var eventCh <-chan events.TaskEvent
	if follow {
		eventCh = rt.Supervisor.Events(taskID).Events()
	}
	result := rt.Supervisor.StartTask(task, env)

	if follow {
		streamEvents(eventCh)
	}
	if err := <-result; err != nil {
		return err
	}

	fmt.Printf("task %s finished: status=%s exit_code=%d\n", task.TaskID, task.Status, task.ExitCode)
	if task.Error != "" {
		fmt.Printf("error: %s\n", task.Error)
	}
	if task.GHPRURL != "" {
		fmt.Printf("pull request: %s\n", task.GHPRURL)
	}
	return nil
}

func streamEvents(ch <-chan events.TaskEvent) {
	for evt := range ch {
		switch evt.Kind {
		case events.KindState:
			fmt.Printf("[%s] state -> %s\n", evt.TaskID, evt.State.Status)
		case events.KindLog:
			fmt.Println(evt.Log.Line)
		case events.KindRetryAttempt:
			fmt.Printf("[%s] retry attempt %d on %s (backoff %ds)\n", evt.TaskID, evt.RetryAttempt.Attempt, evt.RetryAttempt.Agent, evt.RetryAttempt.BackoffSeconds)
		case events.KindAgentSwitched:
			fmt.Printf("[%s] falling back %s -> %s\n", evt.TaskID, evt.AgentSwitched.From, evt.AgentSwitched.To)
		case events.KindDone:
			fmt.Printf("[%s] attempt done: exit_code=%d classification=%s\n", evt.TaskID, evt.Done.ExitCode, evt.Done.Classification)
		}
	}
}
