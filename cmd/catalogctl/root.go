package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentuity/go-catalog/app"
	"github.com/agentuity/go-catalog/config"
	"github.com/agentuity/go-catalog/logger"
	"github.com/agentuity/go-catalog/source"
)

const (
	outputJSON  = "json"
	outputTable = "table"
)

// flagOrEnv returns the flag value when set, else the environment value,
// else def.
func flagOrEnv(cmd *cobra.Command, flagName, envName, def string) string {
	if v, _ := cmd.Flags().GetString(flagName); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(envName); ok {
		return v
	}
	return def
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Query the skills, countries, cities, occupations and hobbies catalogs",
		Version:       source.Version + " (" + source.Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().String("config", "", "path to a YAML config file (env CATALOG_CONFIG)")
	root.PersistentFlags().String("lang", "", "language to query, persisted as the new default")
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn or error")
	root.PersistentFlags().StringP("output", "o", outputJSON, "output format: json or table")

	root.AddCommand(
		newListCommand(),
		newGetCommand(),
		newSearchCommand(),
		newPageCommand(),
		newHealthCommand(),
		newLangCommand(),
		newSignInCommand(),
	)
	return root
}

// withApp loads configuration, builds the app, applies --lang and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(flagOrEnv(cmd, "config", "CATALOG_CONFIG", ""))
	if err != nil {
		return err
	}
	level := logger.ParseLevel(flagOrEnv(cmd, "log-level", "CATALOG_LOG_LEVEL", cfg.Log.Level), logger.LevelWarn)
	log := logger.New(cfg.Log.Format, cmd.ErrOrStderr(), level)

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, app.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("shutdown: %s", err)
		}
	}()

	if lang, _ := cmd.Flags().GetString("lang"); lang != "" && lang != a.CurrentLanguage() {
		if err := a.SetCurrentLanguage(ctx, lang); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case outputJSON, outputTable:
		return format, nil
	}
	return "", errors.Newf("unknown output format %q", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
