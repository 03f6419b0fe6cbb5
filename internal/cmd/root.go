package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faisal-shah/logmerge/internal/output"
)

var cfgFile string

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "logmerge",
	Short: "logmerge: merge growing log files into one time-ordered stream",
	Long: `logmerge tails any number of log files at once, parses every line with a
pluggable schema, and folds the records into a single view sorted by
timestamp. Rotation, truncation, and partial writes are handled without
losing or duplicating lines.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.logmerge.yaml)")
	pf.StringP("schema", "s", "dbglog", "schema file (.toml) or built-in plugin name")
	pf.StringP("output", "o", "text", "output format: text, json")
	pf.StringSlice("columns", nil, "columns to display (default: every schema field and source_file)")
	pf.StringArrayP("where", "w", nil, "only show rows where field=value (repeatable)")
	pf.String("time-layout", output.DefaultTimeLayout, "Go time layout for epoch fields")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")

	bindFlags(rootCmd, true, "schema", "output", "columns", "where", "time_layout", "log_level", "log_format")
}

// bindFlags binds each snake_case config key to its kebab-case flag.
func bindFlags(cmd *cobra.Command, persistent bool, keys ...string) {
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	for _, key := range keys {
		flag := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
		if flag == nil {
			panic("no flag for config key " + key)
		}
		cobra.CheckErr(viper.BindPFlag(key, flag))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".logmerge")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOGMERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}
}
