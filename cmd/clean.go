package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/engine"
)

var cleanRole string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop every table of one database",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openRole(cmd.Context(), cleanRole, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer m.Close()

		return cleanDatabase(cmd.Context(), m, viper.GetInt("settings.max_requeues"))
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&cleanRole, "role", "", "Database to clean: reference or target")
	cleanCmd.MarkFlagRequired("role")
}

// cleanDatabase drops all tables, retrying the ones other tables still reference.
func cleanDatabase(ctx context.Context, m *dbconn.Manager, maxRequeues int) error {
	log.Println("Analyzing schema...")
	tables, err := m.Inspector().ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Printf("🧹 %s has no tables, nothing to do\n", m.Database())
		return nil
	}

	synth, err := engine.NewSynthesizer(ctx, m, false)
	if err != nil {
		return err
	}
	dropper := engine.NewDropper(synth)
	dropper.MaxRequeues = maxRequeues

	log.Printf("Dropping %d tables from %s...", len(tables), m.Database())
	if err := dropper.DropAll(ctx, tables); err != nil {
		var ue *engine.UnresolvableDependencyError
		if errors.As(err, &ue) {
			fmt.Printf("[!] %d tables reference each other and were left in place:\n", len(ue.Remaining))
			for _, t := range ue.Remaining {
				fmt.Printf("    └ %s\n", t)
			}
		}
		return err
	}

	fmt.Printf("🧹 Dropped %d tables from %s\n", len(tables), m.Database())
	log.Println("Database Cleaned Successfully!")
	return nil
}
