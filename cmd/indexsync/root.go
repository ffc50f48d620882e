package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/clinia/indexsync/configx"
	"github.com/clinia/indexsync/internal/config"
	"github.com/clinia/indexsync/loggerx"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexsync",
		Short: "Migrate search indexes when their schema templates change",
		Long: `indexsync compares the schema template of every index family with the index its
alias points to. Changed families are rebuilt into a new versioned index from the record
store, then the alias is swapped in a single request.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringSliceP("config", "c", nil, "Config file (json or yaml), repeatable")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newMigrateCmd(),
		newStatusCmd(),
		newServeCmd(),
		newTriggerCmd(),
	)

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, err := cmd.Flags().GetStringSlice("config")
	if err != nil {
		return nil, err
	}
	// The configured log settings are not known yet, only the flag can raise the level.
	level, _ := cmd.Flags().GetString("log-level")
	l := loggerx.NewWithWriter(cmd.ErrOrStderr(), loggerx.Config{Level: level})

	return config.Load(cmd.Context(), cmd.Flags(), files, configx.WithLogger(l))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
