package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/taskpilot/internal/scheduler"
	"github.com/me/taskpilot/pkg/model"
)

func newRecalculateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute priority scores for all open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				TasksScored int `json:"tasks_scored"`
			}
			if err := client.Post("/api/v1/priorities/recalculate", nil, &result); err != nil {
				return err
			}
			fmt.Printf("scored %d tasks\n", result.TasksScored)
			return nil
		},
	}
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate or inspect schedules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Rebuild and apply all worker schedules now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				SlotsApplied int `json:"slots_applied"`
			}
			if err := client.Post("/api/v1/schedule/generate", nil, &result); err != nil {
				return err
			}
			fmt.Printf("applied %d slots\n", result.SlotsApplied)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "worker <worker-id>",
		Short: "Show a worker's current schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				WorkerID string       `json:"worker_id"`
				Slots    []model.Slot `json:"slots"`
			}
			if err := client.Get("/api/v1/workers/"+url.PathEscape(args[0])+"/schedule", &result); err != nil {
				return err
			}
			if len(result.Slots) == 0 {
				fmt.Println("no slots scheduled")
				return nil
			}
			for _, slot := range result.Slots {
				risk := ""
				if slot.AtRisk {
					risk = "  AT RISK"
				}
				fmt.Printf("%s  %s → %s  conf=%.2f%s\n",
					slot.TaskID,
					slot.StartTime.Format("2006-01-02 15:04"),
					slot.EndTime.Format("2006-01-02 15:04"),
					slot.Confidence, risk)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "task <task-id>",
		Short: "Show a task's current slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var slot model.Slot
			if err := client.Get("/api/v1/tasks/"+url.PathEscape(args[0])+"/schedule", &slot); err != nil {
				return err
			}
			if slot.StartTime.IsZero() {
				fmt.Println("not scheduled")
				return nil
			}
			fmt.Printf("%s → %s on %s  conf=%.2f at_risk=%v\n",
				slot.StartTime.Format("2006-01-02 15:04"),
				slot.EndTime.Format("2006-01-02 15:04"),
				slot.WorkerID, slot.Confidence, slot.AtRisk)
			return nil
		},
	})

	return cmd
}

func newListCmd() *cobra.Command {
	var project, worker string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by descending priority score",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if project != "" {
				q.Set("project", project)
			}
			if worker != "" {
				q.Set("worker_name", worker)
			}
			q.Set("limit", strconv.Itoa(limit))

			var tasks []model.Task
			if err := client.Get("/api/v1/tasks/optimized?"+q.Encode(), &tasks); err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Printf("%6.1f  %-12s %-8s  %s\n", t.PriorityScore, t.Status, t.Priority, t.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Filter by project ID")
	cmd.Flags().StringVar(&worker, "worker", "", "Filter by worker name")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to list")
	return cmd
}

func newBoostCmd() *cobra.Command {
	var reduce bool
	var reason string

	cmd := &cobra.Command{
		Use:   "boost <task-id>",
		Short: "Manually boost (or reduce) a task's priority score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "boost"
			if reduce {
				direction = "reduce"
			}
			body := map[string]string{"direction": direction, "reason": reason}

			var task model.Task
			if err := client.Post("/api/v1/tasks/"+url.PathEscape(args[0])+"/priority", body, &task); err != nil {
				return err
			}
			fmt.Printf("%s: score now %.1f\n", task.ID, task.PriorityScore)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reduce, "reduce", false, "Reduce instead of boost")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit log")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cycle health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st scheduler.CycleStatus
			if err := client.Get("/api/v1/schedule/status", &st); err != nil {
				return err
			}
			fmt.Printf("state:         %s\n", st.State)
			fmt.Printf("cycles run:    %d\n", st.CyclesRun)
			if st.LastRun != nil {
				fmt.Printf("last run:      %s\n", st.LastRun.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("tasks scored:  %d\n", st.TasksScored)
			fmt.Printf("slots built:   %d\n", st.SlotsBuilt)
			fmt.Printf("slots applied: %d\n", st.SlotsApplied)
			if st.LastError != "" {
				fmt.Printf("last error:    %s\n", st.LastError)
			}
			return nil
		},
	}
}
