package main

import (
	"fmt"
	"strings"

	"dirigent/internal/scheduler"

	"github.com/spf13/cobra"
)

// scheduleCmd manages the schedules file directly
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled tasks",
	Long: `Edits the same schedules file the chat command and the serve loop use.
The running scheduler watches the file and picks up changes without a
restart.`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduler.NewStore(cfg.Scheduler.File)
		entries := store.Load()
		if len(entries) == 0 {
			fmt.Println("No schedules.")
			return nil
		}
		for _, e := range entries {
			when := e.Cron
			if when == "" {
				when = "at " + e.At
			}
			line := fmt.Sprintf("%s  [%s]  %s", e.ID, when, e.Task)
			if e.ReplyToChannelID != "" {
				line += "  -> " + e.ReplyToChannelID
			}
			fmt.Println(line)
		}
		return nil
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add [spec...]",
	Short: "Add a schedule",
	Long: `The spec is the same grammar the chat command accepts:

  dirigent schedule add every 5 minutes check the build
  dirigent schedule add at 2026-09-01T09:00:00 send the weekly report
  dirigent schedule add "0 9 * * 1-5" '|' summarize open tasks`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := scheduler.ParseSpec(strings.Join(args, " "))
		if err != nil {
			return err
		}
		store := scheduler.NewStore(cfg.Scheduler.File)
		added, fresh, err := store.Add(entry)
		if err != nil {
			return err
		}
		if !fresh {
			fmt.Printf("Already scheduled as %s\n", added.ID)
			return nil
		}
		fmt.Printf("Scheduled %s\n", added.ID)
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a schedule by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduler.NewStore(cfg.Scheduler.File)
		removed, err := store.Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no schedule with id %s", args[0])
		}
		fmt.Println("Removed.")
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
}
