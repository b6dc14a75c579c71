package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/db"
	"ai-things/clipcast/internal/utils"
)

const sampleTranscript = `00:00:00 Speaker A: You know what's frustrating about staying healthy?
00:00:05 Speaker B: What do you mean?
00:00:07 Speaker A: Like, everyone talks about tracking calories, but who has time to log every single thing you eat?
00:00:12 Speaker B: Oh man, totally. I tried that once and gave up after like three days.
00:00:16 Speaker A: Right? It's like a part-time job. You're there with your phone calculator doing math for a sandwich.
00:00:22 Speaker B: And then you're guessing portion sizes anyway, so what's the point?
00:00:26 Speaker A: Exactly! That's why I love when technology actually solves real problems.
00:00:30 Speaker B: What do you mean by that?
00:00:32 Speaker A: Like, imagine if you could just take a picture of your food and get all the nutrition info instantly.
00:00:37 Speaker B: That would be game-changing. Is that even possible?
00:00:40 Speaker A: I mean, AI is getting pretty crazy these days. Computer vision, machine learning...
00:00:45 Speaker B: True, but food is so complex. Different ingredients, cooking methods, portion sizes.
00:00:50 Speaker A: Yeah, but if someone cracked that problem, it would help millions of people stay consistent with their health goals.
00:00:56 Speaker B: For real. Consistency is everything when it comes to nutrition.
00:01:00 Speaker A: And most people fail because tracking is too tedious, not because they don't want to be healthy.
00:01:05 Speaker B: That's a great point. Remove the friction, and people will actually stick with it.
`

func newTranscriptSampleCommand(cctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "transcript:sample [path]",
		Short: "Write a sample transcript for trying the pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sample_transcript.txt"
			if len(args) == 1 {
				path = args[0]
			}
			if utils.FileExists(path) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := utils.WriteFileAtomic(path, strings.NewReader(sampleTranscript)); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sample transcript created: %s\n", path)
			fmt.Fprintf(out, "try: clipcast pipeline:run https://www.calai.app/ %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newMigrateCommand(cctx *commandContext) *cobra.Command {
	var (
		dir    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate [up]",
		Short: "Apply postgres schema migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				action = strings.TrimSpace(args[0])
			}
			if action != "up" {
				return fmt.Errorf("unsupported migrate action %q (supported: up)", action)
			}
			cfg, err := cctx.config()
			if err != nil {
				return err
			}
			if cfg.DB.Driver != "postgres" {
				utils.Warn("db.driver is not postgres; migrating the configured postgres database anyway", "driver", cfg.DB.Driver)
			}

			names, err := db.Migrate(cmd.Context(), cfg.DBConnString(), dir, dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case len(names) == 0:
				fmt.Fprintln(out, "no pending migrations")
			case dryRun:
				fmt.Fprintf(out, "pending migrations (%d):\n", len(names))
				for _, n := range names {
					fmt.Fprintf(out, "  %s\n", n)
				}
			default:
				fmt.Fprintf(out, "applied %d migration(s)\n", len(names))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "Directory containing *.sql migrations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying")
	return cmd
}
