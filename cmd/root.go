package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	quiet   bool

	// exitCode is set by commands that finish without error but want a
	// non-zero status (a run that needs developer attention exits with 2).
	exitCode int
)

var RootCmd = &cobra.Command{
	Use:   "schema-sync",
	Short: "A MySQL schema reconciliation tool",
	Long: `
SCHEMA SYNC 🔁 - Brings a target MySQL schema in line with a reference schema

Tables and columns missing from the target are copied from the reference,
tables and columns the reference no longer has are dropped, and column
definitions that differ are redefined. Row data is never copied.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if quiet {
			log.SetOutput(io.Discard)
		}
		return nil
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schema-sync.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final report")

	viper.SetDefault("settings.max_requeues", 0)
	viper.SetDefault("settings.output", "text")
	viper.SetDefault("settings.demo_rows", 5)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("schema-sync")
		viper.SetConfigType("yaml")
	}

	// SCHEMA_SYNC_TARGET_PASSWORD overrides target.password, and so on.
	viper.SetEnvPrefix("SCHEMA_SYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}
