package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/db"
)

const timeDisplay = "2006-01-02 15:04:05"

func newRunsListCommand(cctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs:list",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer cctx.close()
			ledger, err := cctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := ledger.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.State,
					r.AppName,
					strconv.Itoa(r.ClipIndex),
					r.CreatedAt.Local().Format(timeDisplay),
					runOutcome(r),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Run", "State", "App", "Clip", "Created", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	return cmd
}

func runOutcome(r db.Run) string {
	switch {
	case r.Error != "":
		return truncate(r.Error, 60)
	case r.FinalVideoPath != "" && r.Captioned:
		return r.FinalVideoPath + " (captioned)"
	default:
		return r.FinalVideoPath
	}
}

func newRunsShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs:show <run_id>",
		Short: "Show one run with its transitions and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer cctx.close()
			ledger, err := cctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := ledger.GetRun(cmd.Context(), args[0])
			if errors.Is(err, db.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := detail.Run
			fmt.Fprintf(out, "run:        %s\n", r.ID)
			fmt.Fprintf(out, "state:      %s\n", r.State)
			fmt.Fprintf(out, "website:    %s\n", r.WebsiteURL)
			fmt.Fprintf(out, "transcript: %s\n", r.TranscriptPath)
			fmt.Fprintf(out, "clip:       %d\n", r.ClipIndex)
			if r.FinalVideoPath != "" {
				fmt.Fprintf(out, "video:      %s (captioned=%t)\n", r.FinalVideoPath, r.Captioned)
			}
			if r.Error != "" {
				fmt.Fprintf(out, "error:      %s\n", r.Error)
			}
			if r.FinishedAt != nil {
				fmt.Fprintf(out, "duration:   %s\n", r.FinishedAt.Sub(r.CreatedAt).Truncate(time.Second))
			}

			rows := make([][]string, 0, len(detail.Transitions))
			for _, t := range detail.Transitions {
				rows = append(rows, []string{t.At.Local().Format(timeDisplay), t.State, truncate(t.Detail, 60)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"At", "State", "Detail"}, rows, nil))

			if len(detail.Artifacts) > 0 {
				rows = rows[:0]
				for _, a := range detail.Artifacts {
					rows = append(rows, []string{strconv.Itoa(a.SegmentIndex), a.Kind, a.Speaker, a.Path, shortHash(a.SHA256)})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Segment", "Kind", "Speaker", "Path", "SHA256"},
					rows,
					[]columnAlignment{alignRight},
				))
			}
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
