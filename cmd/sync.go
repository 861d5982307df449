package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/engine"
)

var (
	dryRun bool
	output string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the target schema to match the reference schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format := output
		if !cmd.Flags().Changed("output") {
			if v := viper.GetString("settings.output"); v != "" {
				format = v
			}
		}
		if format != "text" && format != "json" {
			return fmt.Errorf("unknown output format %q (use text or json)", format)
		}
		out, status := cmd.OutOrStdout(), statusWriter(cmd, format)

		// Reference first: nothing touches the target before the reference is readable.
		ref, err := openRole(ctx, dbconn.RoleReference, status)
		if err != nil {
			return err
		}
		defer ref.Close()
		tgt, err := openRole(ctx, dbconn.RoleTarget, status)
		if err != nil {
			return err
		}
		defer tgt.Close()

		if dryRun {
			fmt.Fprintln(status, "[SIMULATION] Dry-Run Mode Active: the target will not be changed.")
		}
		start := time.Now()

		r := &engine.Reconciler{Reference: ref, Target: tgt, DryRun: dryRun}
		progress := newStepProgress(format == "text" && !quiet, "Reconciling")
		r.Progress = progress.Set
		report, runErr := r.Reconcile(ctx)
		progress.Stop()

		if err := printReport(out, report, format); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("reconciliation aborted: %w", runErr)
		}
		if report.Outcome == engine.OutcomeNeedsAttention {
			exitCode = 2
		}
		fmt.Fprintf(status, "Sync Done! Time Elapsed: %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements without executing them")
	syncCmd.Flags().StringVarP(&output, "output", "o", "text", "Report format: text or json (default from settings.output)")
}

func printReport(w io.Writer, report *engine.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	report.Fprint(w)
	if dryRun && len(report.Statements) > 0 {
		fmt.Fprintln(w, "\n🔍 Planned statements:")
		for i, s := range report.Statements {
			fmt.Fprintf(w, "[%02d] %s\n", i+1, s)
		}
	}
	return nil
}

// stepProgress renders a progress bar once the number of steps is known.
type stepProgress struct {
	enabled bool
	label   string
	bar     *uiprogress.Bar
}

func newStepProgress(enabled bool, label string) *stepProgress {
	return &stepProgress{enabled: enabled, label: label}
}

func (p *stepProgress) Set(done, total int) {
	if !p.enabled || total == 0 {
		return
	}
	if p.bar == nil {
		uiprogress.Start()
		p.bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
		p.bar.PrependFunc(func(b *uiprogress.Bar) string {
			return p.label + ": "
		})
	}
	p.bar.Set(done)
}

// Incr advances the bar by one step of a known total.
func (p *stepProgress) Incr(total int) func() {
	done := 0
	return func() {
		done++
		p.Set(done, total)
	}
}

func (p *stepProgress) Stop() {
	if p.bar != nil {
		uiprogress.Stop()
	}
}
