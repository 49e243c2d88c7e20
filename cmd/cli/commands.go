package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"katu-bot/internal/command"
	"katu-bot/internal/config"
	"katu-bot/internal/docs"
	"katu-bot/internal/storage"
	v "katu-bot/internal/version"
	botcmd "katu-bot/pkg/cmd"
	"katu-bot/pkg/util"

	"github.com/spf13/cobra"
)

type (
	loadFunc  func() (*config.Config, error)
	openFunc  func(ctx context.Context, cfg *config.Config) (storage.Storage, error)
	storeFunc func(ctx context.Context, cmd *cobra.Command, args []string, store storage.Storage) error
)

const timestampTpl = "YYYY-MM-DD hh:mm:ss"

func newRootCmd(load loadFunc, open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "katu",
		Short:         v.AppName + " maintenance CLI",
		Long:          `Inspect daily message counters and guild settings in the configured storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// withStore loads the configuration, opens storage and closes it after run.
	withStore := func(run storeFunc) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return run(ctx, cmd, args, store)
		}
	}

	root.AddCommand(
		newRankingCmd(withStore),
		newStatsCmd(withStore),
		newPruneCmd(load, withStore),
		newConfigCmd(load),
		newDocsCmd(load),
	)
	return root
}

type storeWrapper func(run storeFunc) func(cmd *cobra.Command, args []string) error

func newRankingCmd(withStore storeWrapper) *cobra.Command {
	var date string
	var limit int
	c := &cobra.Command{
		Use:   "ranking <guild-id>",
		Short: "Print a guild's daily ranking",
		Args:  cobra.ExactArgs(1),
	}
	c.RunE = withStore(func(ctx context.Context, cmd *cobra.Command, args []string, store storage.Storage) error {
		guildID := args[0]
		day, err := resolveDate(date)
		if err != nil {
			return err
		}
		ranking, err := store.DailyRanking(ctx, day, guildID, limit)
		if err != nil {
			return err
		}
		total, err := store.TotalMessages(ctx, day, guildID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Ranking %s for guild %s (%d messages)\n", day, guildID, total)
		if len(ranking) == 0 {
			fmt.Fprintln(out, "no messages")
			return nil
		}
		for i, e := range ranking {
			fmt.Fprintf(out, "%3d. %s (%s) - %d\n", i+1, e.Username, e.UserID, e.Count)
		}
		return nil
	})
	c.Flags().StringVar(&date, "date", "", "day to show as YYYY-MM-DD (default today, UTC)")
	c.Flags().IntVar(&limit, "limit", 100, "maximum number of users, 0 for all")
	return c
}

func newStatsCmd(withStore storeWrapper) *cobra.Command {
	var date string
	c := &cobra.Command{
		Use:   "stats <guild-id> <user-id>",
		Short: "Print one user's count and rank",
		Args:  cobra.ExactArgs(2),
	}
	c.RunE = withStore(func(ctx context.Context, cmd *cobra.Command, args []string, store storage.Storage) error {
		guildID, userID := args[0], args[1]
		day, err := resolveDate(date)
		if err != nil {
			return err
		}
		count, ok, err := store.MessageCount(ctx, day, guildID, userID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "no messages from %s on %s\n", userID, day)
			return nil
		}
		ranking, err := store.DailyRanking(ctx, day, guildID, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s on %s: %d messages, rank #%d of %d, last update %s\n",
			count.Username, day, count.Count, storage.Rank(ranking, userID), len(ranking),
			util.FormatDateTpl(count.UpdatedAt, timestampTpl))
		return nil
	})
	c.Flags().StringVar(&date, "date", "", "day to show as YYYY-MM-DD (default today, UTC)")
	return c
}

func newPruneCmd(load loadFunc, withStore storeWrapper) *cobra.Command {
	var days int
	c := &cobra.Command{
		Use:   "prune",
		Short: "Delete counters older than the retention period",
		Args:  cobra.NoArgs,
	}
	c.RunE = withStore(func(ctx context.Context, cmd *cobra.Command, _ []string, store storage.Storage) error {
		if !cmd.Flags().Changed("days") {
			cfg, err := load()
			if err != nil {
				return err
			}
			days = cfg.Storage.CountRetentionDays
		}
		if days <= 0 {
			return fmt.Errorf("retention is disabled: pass --days or set COUNT_RETENTION_DAYS")
		}
		removed, err := storage.PruneOlderThan(ctx, store, days, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d counters older than %d days\n", removed, days)
		return nil
	})
	c.Flags().IntVar(&days, "days", 0, "keep this many days of counters (default COUNT_RETENTION_DAYS)")
	return c
}

func newConfigCmd(load loadFunc) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the environment configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration ok")
			fmt.Fprintf(out, "  storage driver: %s\n", storage.ResolveDriver(cfg.Storage))
			fmt.Fprintf(out, "  command prefix: %s\n", cfg.CommandPrefix)
			if cfg.AI.Enabled {
				fmt.Fprintf(out, "  ai: %s (%s)\n", cfg.AI.Provider, cfg.AI.Model)
			} else {
				fmt.Fprintln(out, "  ai: disabled")
			}
			return nil
		},
	})
	return configCmd
}

func newDocsCmd(load loadFunc) *cobra.Command {
	var tmplPath, outPath string
	c := &cobra.Command{
		Use:   "docs",
		Short: "Render the command reference as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			registry := botcmd.NewRegistry()
			if err := command.Register(registry, command.Deps{Prefix: cfg.CommandPrefix}); err != nil {
				return err
			}

			var tmpl string
			if tmplPath != "" {
				b, err := os.ReadFile(tmplPath)
				if err != nil {
					return err
				}
				tmpl = string(b)
			}
			if outPath == "" {
				return docs.Render(cmd.OutOrStdout(), tmpl, registry, cfg.CommandPrefix)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return docs.Render(f, tmpl, registry, cfg.CommandPrefix)
		},
	}
	c.Flags().StringVar(&tmplPath, "template", "", "text/template file with a {{.CommandSections}} placeholder")
	c.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return c
}

func resolveDate(date string) (string, error) {
	if date == "" {
		return storage.Day(time.Now()), nil
	}
	if _, err := time.Parse(storage.DayLayout, date); err != nil {
		return "", fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}
	return date, nil
}
