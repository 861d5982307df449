package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/engine"
	"schema-sync/internal/schema"
)

var (
	inspectRole   string
	inspectOutput string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the tables and columns of one database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if inspectOutput != "text" && inspectOutput != "json" {
			return fmt.Errorf("unknown output format %q (use text or json)", inspectOutput)
		}
		w := cmd.OutOrStdout()
		m, err := openRole(ctx, inspectRole, statusWriter(cmd, inspectOutput))
		if err != nil {
			return err
		}
		defer m.Close()

		snap, err := engine.Capture(ctx, m)
		if err != nil {
			return err
		}
		deps, err := m.Inspector().Dependencies(ctx)
		if err != nil {
			return err
		}

		if inspectOutput == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		// Parents before children, the order a full copy would create them in.
		order := schema.SortByDependencies(snap.Names(), deps)
		fmt.Fprintf(w, "\n🔍 %s (%s): %d tables\n", m.Database(), m.Role(), len(order))
		for i, name := range order {
			info := snap.Tables[name]
			rows := "has rows"
			if info.IsEmpty {
				rows = "empty"
			}
			fmt.Fprintf(w, "[%02d] %-20s : %d columns, %s\n", i+1, name, len(info.Columns), rows)
			fmt.Fprintf(w, "     columns: %s\n", strings.Join(info.Columns, ", "))
			if len(deps[name]) > 0 {
				fmt.Fprintf(w, "     references: %s\n", strings.Join(deps[name], ", "))
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectRole, "role", dbconn.RoleTarget, "Database to inspect: reference or target")
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "text", "Output format: text or json")
}
