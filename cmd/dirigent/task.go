package main

import (
	"fmt"
	"strings"

	"dirigent/internal/tasks"

	"github.com/spf13/cobra"
)

// taskCmd manages the task files without going through the model
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task files",
	Long: `Works on the same task files the chat commands use. Tasks live as
markdown files under the configured task root; the status is part of
the filename.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list [pending|wip|finished|unsuccessful|assignee|all]",
	Short: "List tasks, optionally filtered by status or assignee",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		scope := ""
		if len(args) > 0 {
			scope = args[0]
		}
		list, err := store.List(scope)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		for _, t := range list {
			fmt.Printf("%-12s %-10s %-36s %s\n", t.Status, t.AssignedTo, t.Filename(), t.Topic)
		}
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task]",
	Short: "Print a task file (by filename, id, or topic)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		t, err := store.Show(args[0])
		if err != nil {
			return err
		}
		fmt.Println(t.Content)
		return nil
	},
}

var taskAssign string

var taskCreateCmd = &cobra.Command{
	Use:   "create [topic] [content...]",
	Short: "Create a new pending task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		assignee := tasks.AssigneeDefault
		if taskAssign != "" {
			a, ok := tasks.ParseAssignee(taskAssign)
			if !ok {
				return fmt.Errorf("unknown assignee %q (scheduler, discord, cpu, default)", taskAssign)
			}
			assignee = a
		}
		content := strings.Join(args[1:], " ")
		path, err := store.Create(args[0], "", content, assignee)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", path)
		return nil
	},
}

var taskAppendCmd = &cobra.Command{
	Use:   "append [task] [text...]",
	Short: "Append a timestamped feedback block to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		path, err := store.Append(args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Appended to %s\n", path)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task] [wip|finished|unsuccessful]",
	Short: "Move a task to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		status, ok := tasks.ParseStatus(args[1])
		if !ok {
			return fmt.Errorf("unknown status %q (wip, finished, unsuccessful)", args[1])
		}
		path, err := store.SetStatus(args[0], status)
		if err != nil {
			return err
		}
		fmt.Printf("Now %s\n", path)
		return nil
	},
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign [task] [scheduler|discord|cpu|default]",
	Short: "Route a task to a different worker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tasks.NewStore(cfg.Tasks.Root)
		if err != nil {
			return err
		}
		assignee, ok := tasks.ParseAssignee(args[1])
		if !ok {
			return fmt.Errorf("unknown assignee %q (scheduler, discord, cpu, default)", args[1])
		}
		if err := store.Assign(args[0], assignee); err != nil {
			return err
		}
		fmt.Printf("Assigned to %s\n", assignee)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskAssign, "assign", "", "Assignee: scheduler, discord, cpu, or default")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskAppendCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskAssignCmd)
}
