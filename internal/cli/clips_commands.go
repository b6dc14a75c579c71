package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/clips"
	"ai-things/clipcast/internal/podcast"
)

func newClipsListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clips:list <clips.json>",
		Short: "List the ranked clips in a clips file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := clips.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if set.Topic != "" {
				fmt.Fprintf(out, "topic: %s\n", set.Topic)
			}
			rows := make([][]string, 0, len(set.Clips))
			for i, c := range set.Clips {
				rows = append(rows, []string{
					strconv.Itoa(i),
					strconv.Itoa(c.Rank),
					c.StartTime + "-" + c.EndTime,
					strconv.Itoa(len(c.DialogueLines)),
					strconv.FormatBool(c.AppMentionPresent),
					truncate(c.HookText, 60),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Index", "Rank", "Window", "Lines", "Mention", "Hook"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newClipsSegmentsCommand(cctx *commandContext) *cobra.Command {
	var clipIndex int
	cmd := &cobra.Command{
		Use:   "clips:segments <clips.json>",
		Short: "Print the dialogue segments of one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := clips.Load(args[0])
			if err != nil {
				return err
			}
			segments, err := set.Segments(clipIndex)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(segments))
			for _, seg := range segments {
				rows = append(rows, []string{strconv.Itoa(seg.Index), string(seg.Speaker), seg.Text})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Index", "Speaker", "Text"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVar(&clipIndex, "clip-index", 0, "Clip to print (0 = top-ranked)")
	return cmd
}

func newAssetsCheckCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assets:check [speaker...]",
		Short: "Verify a base video exists for each speaker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			stage := newVideoStage(cfg)

			speakers := make([]podcast.Speaker, 0, len(args))
			for _, a := range args {
				speakers = append(speakers, podcast.Speaker(a))
			}
			if len(speakers) == 0 {
				for name := range cfg.Assets {
					speakers = append(speakers, podcast.Speaker(name))
				}
				sort.Slice(speakers, func(i, j int) bool { return speakers[i] < speakers[j] })
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(speakers))
			var firstErr error
			for _, sp := range speakers {
				status := "ok"
				if err := stage.CheckAssets([]podcast.Speaker{sp}); err != nil {
					status = "missing"
					if firstErr == nil {
						firstErr = err
					}
				}
				rows = append(rows, []string{string(sp), stage.Assets[sp], status})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Speaker", "Video", "Status"}, rows, nil))
			return firstErr
		},
	}
}
