package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sageflow/internal/store"
	"sageflow/internal/tasks"
)

// historyCmd prints journaled task history.
var historyCmd = &cobra.Command{
	Use:   "history [JOB_ID]",
	Short: "Show journaled task history",
	Long: `Without arguments, lists the jobs recorded in the journal (most recent
first). With a JOB_ID, prints every task change of that job in order.
Requires tasks.journal_path (or SAGE_JOURNAL).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Tasks.JournalPath == "" {
		return fmt.Errorf("no journal configured (set tasks.journal_path or SAGE_JOURNAL)")
	}
	j, err := store.OpenJournal(cfg.Tasks.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		jobs, err := j.Jobs()
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(out, "no jobs")
		}
		for _, id := range jobs {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	entries, err := j.Entries(args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no history for job %s", args[0])
	}
	for _, e := range entries {
		switch e.Action {
		case tasks.ActionAdded:
			fmt.Fprintf(out, "%4d %s added   task %s: %s\n", e.Seq, e.At.Local().Format(time.DateTime), e.TaskID, e.Description)
		default:
			fmt.Fprintf(out, "%4d %s %-7s task %s: %s -> %s\n", e.Seq, e.At.Local().Format(time.DateTime), e.Action, e.TaskID, e.From, e.To)
		}
	}
	return nil
}
