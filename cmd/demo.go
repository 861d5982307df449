package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/demo"
	"schema-sync/internal/engine"
)

var (
	demoRows int
	demoSeed int64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Rebuild both databases with festival data, change the reference and sync the target",
	Long: `Drops every table of BOTH configured databases, creates the festival demo tables
(festivals, bands, schedules, managers) on each and fills them with generated rows.
The reference then gains bands.country, loses bands.city and managers, gets a wider
festivals.name and a new_table. Finally the target is reconciled to the reference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref, err := openRole(ctx, dbconn.RoleReference, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer ref.Close()
		tgt, err := openRole(ctx, dbconn.RoleTarget, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer tgt.Close()

		rows := viper.GetInt("settings.demo_rows")
		if rows <= 0 {
			rows = 5
		}
		seed := demoSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		log.Printf("Starting demo with %d rows per table (seed %d)...", rows, seed)

		// Each database gets rows festivals, bands and managers plus rows² schedules.
		progress := newStepProgress(!quiet, "Seeding")
		report, runErr := demo.Run(ctx, ref, tgt, demo.Options{
			Rows:       rows,
			Seed:       seed,
			DryRun:     dryRun,
			OnProgress: progress.Incr(2 * (3*rows + rows*rows)),

			MaxRequeues: viper.GetInt("settings.max_requeues"),
		})
		progress.Stop()

		if report != nil {
			if err := printReport(cmd.OutOrStdout(), report, "text"); err != nil {
				return err
			}
		}
		if runErr != nil {
			return fmt.Errorf("demo aborted: %w", runErr)
		}
		if report.Outcome == engine.OutcomeNeedsAttention {
			exitCode = 2
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVar(&demoRows, "rows", 0, "Rows per parent table (overrides config)")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 0, "Generator seed (default: current time)")
	demoCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build both databases but only print the reconciliation statements")

	viper.BindPFlag("settings.demo_rows", demoCmd.Flags().Lookup("rows"))
}
