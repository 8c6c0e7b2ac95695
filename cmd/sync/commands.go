package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/fetch"
	"github.com/riskibarqy/league-sync/internal/infrastructure/checkpoint"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "sync",
		Short: "Incrementally synchronize TF2 league data into the local store",
		Long: `sync pulls match, roster and player data from RGL and ETF2L.

Listings stage stubs for records not yet stored, details fill the stubs in.
Every operation is idempotent and may be re-run after a failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file seeding the environment")
	root.PersistentFlags().StringVar(&c.storeDriver, "store", "", "override STORE_DRIVER (postgres or memory)")

	root.AddCommand(
		newListingsCmd(c),
		newDetailsCmd(c),
		newAllCmd(c),
		newReplayCmd(c),
		newCalibrateCmd(c),
	)
	return root
}

func newListingsCmd(c *cli) *cobra.Command {
	var srcFlag, kindFlag string
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Stage stubs for listed records that are not stored yet",
		Example: `  sync listings --source rgl --kind match
  sync listings --source etf2l --kind roster`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := parseSource(srcFlag)
			if err != nil {
				return err
			}
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			return c.traced(cmd, func(ctx context.Context) error {
				ops, err := c.app.Reconciler.For(kind)
				if err != nil {
					return err
				}
				rep, err := ops.SynchronizeListings(ctx, src)
				printReport(cmd.OutOrStdout(), "listings", rep)
				return err
			}, attribute.String("source", src.String()), attribute.String("kind", kind.String()))
		},
	}
	cmd.Flags().StringVar(&srcFlag, "source", "rgl", "league site (rgl or etf2l)")
	cmd.Flags().StringVar(&kindFlag, "kind", "match", "entity kind (match or roster)")
	return cmd
}

func newDetailsCmd(c *cli) *cobra.Command {
	var srcFlag, kindFlag string
	cmd := &cobra.Command{
		Use:   "details",
		Short: "Fetch details for stored stubs and mark them complete",
		Example: `  sync details --source rgl --kind match
  sync details --source rgl --kind player`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := parseSource(srcFlag)
			if err != nil {
				return err
			}
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}
			return c.traced(cmd, func(ctx context.Context) error {
				ops, err := c.app.Reconciler.For(kind)
				if err != nil {
					return err
				}
				rep, err := ops.SynchronizeDetails(ctx, src)
				printReport(cmd.OutOrStdout(), "details", rep)
				return err
			}, attribute.String("source", src.String()), attribute.String("kind", kind.String()))
		},
	}
	cmd.Flags().StringVar(&srcFlag, "source", "rgl", "league site (rgl or etf2l)")
	cmd.Flags().StringVar(&kindFlag, "kind", "match", "entity kind (match, roster or player)")
	return cmd
}

func newAllCmd(c *cli) *cobra.Command {
	var srcFlag string
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run every listing, then match, roster and player details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := parseSource(srcFlag)
			if err != nil {
				return err
			}
			return c.traced(cmd, func(ctx context.Context) error {
				reports, err := c.app.Reconciler.SynchronizeAll(ctx, src)
				for _, rep := range reports {
					printReport(cmd.OutOrStdout(), "all", rep)
				}
				return err
			}, attribute.String("source", src.String()))
		},
	}
	cmd.Flags().StringVar(&srcFlag, "source", "rgl", "league site (rgl or etf2l)")
	return cmd
}

func newReplayCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply checkpoint files to the store",
		Long:  "replay reads players.jsonl, teams.jsonl and matches.jsonl from --dir (default CHECKPOINT_DIR).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = c.cfg.CheckpointDir
			}
			if dir == "" {
				return fmt.Errorf("replay needs --dir or CHECKPOINT_DIR")
			}
			return c.traced(cmd, func(ctx context.Context) error {
				rep, err := c.app.Reconciler.Replay(ctx, checkpoint.Read(ctx, dir))
				printReport(cmd.OutOrStdout(), "replay", rep)
				return err
			}, attribute.String("dir", dir))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "checkpoint directory")
	return cmd
}

func newCalibrateCmd(c *cli) *cobra.Command {
	var (
		srcFlag string
		url     string
		batch   int
		samples int
	)
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Time full scrapes of a URL across delay profiles and print the fastest",
		Example: `  sync calibrate --source rgl --url https://api.rgl.gg/v0/profile/76561198011940487
  sync calibrate --source etf2l --url https://api-v2.etf2l.org/player/76561198011940487 --samples 18`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := parseSource(srcFlag)
			if err != nil {
				return err
			}
			if url == "" {
				return fmt.Errorf("calibrate needs --url")
			}
			grid := fetch.DefaultGrid()
			if batch > 0 {
				grid.BatchSize = batch
			}
			if samples > 0 {
				grid.Samples = samples
			}
			return c.traced(cmd, func(ctx context.Context) error {
				best, trials, err := c.app.Scheduler(src).Calibrate(ctx, url, grid)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, trial := range trials {
					fmt.Fprintf(out, "delay_size=%d delay_step=%s elapsed=%s fetched=%d\n",
						trial.Profile.DelaySize, trial.Profile.DelayStep, trial.Elapsed.Round(time.Millisecond), trial.Fetched)
				}
				fmt.Fprintf(out, "\n%s_BATCH_SIZE=%d\n%s_DELAY_SIZE=%d\n%s_DELAY_STEP=%s\n",
					src, best.BatchSize, src, best.DelaySize, src, best.DelayStep)
				return nil
			}, attribute.String("source", src.String()))
		},
	}
	cmd.Flags().StringVar(&srcFlag, "source", "rgl", "league site whose profile is calibrated")
	cmd.Flags().StringVar(&url, "url", "", "URL fetched repeatedly during calibration")
	cmd.Flags().IntVar(&batch, "batch", 0, "requests per round (default 9)")
	cmd.Flags().IntVar(&samples, "samples", 0, "copies of the URL per trial (default 9)")
	return cmd
}

func printReport(w io.Writer, op string, rep usecase.Report) {
	kind := rep.Kind
	if kind == "" {
		kind = entity.Kind("documents")
	}
	fmt.Fprintf(w, "%s %s %s: added=%d updated=%d skipped=%d completed=%d batches=%d\n",
		op, rep.Source, kind, rep.Added, rep.Updated, rep.Skipped, rep.Completed, rep.Batches)
	for related, tally := range rep.Related {
		fmt.Fprintf(w, "  %s: added=%d updated=%d skipped=%d completed=%d\n",
			related, tally.Added, tally.Updated, tally.Skipped, tally.Completed)
	}
}
