package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/podcast"
	"ai-things/clipcast/internal/utils"
)

func newComposeCommand(cctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "job:compose <video>...",
		Short: "Concatenate existing segment videos into one file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			if output == "" {
				return errors.New("--output is required")
			}
			videos := make([]podcast.Artifact, 0, len(args))
			for i, path := range args {
				if !utils.FileExists(path) {
					return fmt.Errorf("video not found: %s", path)
				}
				videos = append(videos, podcast.Artifact{SegmentIndex: i, Path: path, Kind: podcast.KindVideo})
			}
			composed, err := newCompositor(cfg).Compose(cmd.Context(), videos, output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), composed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output video path")
	return cmd
}

func newCaptionCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job:caption <video>",
		Short: "Caption an existing video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			if err := cfg.RequireKeys("captions"); err != nil {
				return err
			}
			if !utils.FileExists(args[0]) {
				return fmt.Errorf("video not found: %s", args[0])
			}
			stage := newCaptionStage(cfg)
			stage.Enabled = true
			res, err := stage.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("captioning failed: %w", res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}
}
