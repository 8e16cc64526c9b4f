package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidscribe/internal/batch"
	"vidscribe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs or the items of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if id := strings.TrimSpace(runID); id != "" {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				items, err := store.RunItems(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderRunDetail(out, run, items)
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.Started.Local().Format(time.DateTime),
					fmt.Sprintf("%d", run.Total),
					fmt.Sprintf("%d", run.Counters.Succeeded),
					fmt.Sprintf("%d", run.Counters.Skipped),
					fmt.Sprintf("%d", run.Counters.Errored),
					runState(run),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Files", "Succeeded", "Skipped", "Errored", "State"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "Maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the items of a single run")
	return cmd
}

func runState(run history.Run) string {
	switch {
	case run.InProgress():
		return "in progress"
	case run.Cancelled:
		return "cancelled"
	default:
		return "finished"
	}
}

func renderRunDetail(out io.Writer, run history.Run, items []history.ItemRecord) {
	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "Started: %s\n", run.Started.Local().Format(time.DateTime))
	if run.Finished != nil {
		fmt.Fprintf(out, "Elapsed: %s\n", run.Finished.Sub(run.Started).Round(time.Second))
	}
	fmt.Fprintf(out, "State:   %s\n", runState(run))
	fmt.Fprintf(out, "Output:  %s\n", run.OutputDir)
	fmt.Fprintf(out, "Counts:  %d succeeded, %d skipped, %d errored of %d\n",
		run.Counters.Succeeded, run.Counters.Skipped, run.Counters.Errored, run.Total)
	if len(items) == 0 {
		return
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := item.Reason
		if item.Kind == batch.Succeeded {
			detail = fmt.Sprintf("%d words", item.Words)
			if item.Language != "" {
				detail += ", " + item.Language
			}
		}
		if item.Notice != "" && item.Kind != batch.Failed && item.Kind != batch.NoSpeech {
			detail += " (" + item.Notice + ")"
		}
		rows = append(rows, []string{item.Name, item.Kind.String(), item.Elapsed.Round(time.Second).String(), detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Outcome", "Elapsed", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}
