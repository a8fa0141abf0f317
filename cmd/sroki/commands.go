package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/m3rciful/sroki/core/buildinfo"
	corecmd "github.com/m3rciful/sroki/core/cmd"
	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/internal/app"
	"github.com/m3rciful/sroki/internal/config"
	"github.com/m3rciful/sroki/internal/mcptools"
	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/sweep"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sroki",
	Short:         "Telegram reminder bot with due and discount sweeps",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot and its sweeps (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

func runBot() error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			return app.New(cfg, app.Options{})
		},
	})
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false, false)
		if err != nil {
			return err
		}
		defer closeApp(a)
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", a.Config().Database.Target())
		return nil
	},
}

// --- sweep ---

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep now and deliver its notices",
}

var sweepDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Deliver and delete reminders due today or earlier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, sweep.KindDue)
	},
}

var sweepLookaheadCmd = &cobra.Command{
	Use:   "lookahead",
	Short: "Send discount notices for reminders due within the window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, sweep.KindLookahead)
	},
}

func runSweep(cmd *cobra.Command, kind sweep.Kind) error {
	a, err := openApp(true, false)
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := a.DialTelegram(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := a.Scheduler.RunDue
	if kind == sweep.KindLookahead {
		run = a.Scheduler.RunLookahead
	}
	res, err := run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s sweep %s: found=%d delivered=%d failed=%d deleted=%d\n",
		res.Kind, res.RunID, res.Found, res.Delivered, res.Failed, res.Deleted)
	return res.Err()
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		a, err := openApp(false, false)
		if err != nil {
			return err
		}
		defer closeApp(a)

		ctx := context.Background()
		total, err := a.Store.Count(ctx)
		if err != nil {
			return err
		}
		items, err := a.Store.ListPage(ctx, page, size)
		if err != nil {
			return err
		}
		return printReminders(cmd.OutOrStdout(), items, total)
	},
}

func printReminders(w io.Writer, items []reminder.Reminder, total int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHAT\tDUE\tTEXT")
	for _, r := range items {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", r.ID, r.ChatID, r.DueDate.Display(), r.Text)
	}
	fmt.Fprintf(tw, "\n%d of %d\n", len(items), total)
	return tw.Flush()
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve reminder tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false, true)
		if err != nil {
			return err
		}
		defer closeApp(a)

		deps := mcptools.Deps{
			Store:    a.Store,
			Location: a.Config().Reminders.Location(),
		}
		cfg := a.Config()
		if cfg.Telegram.Token != "" && cfg.Reminders.ChannelID != 0 {
			if err := a.DialTelegram(); err != nil {
				return err
			}
			deps.Sweeper = a.Scheduler
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return mcptools.Serve(ctx, mcptools.NewServer(deps), os.Stdin, os.Stdout)
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sroki", buildinfo.String())
	},
}

// openApp loads the configuration and opens the database. Telegram settings are
// validated only when full is set; quiet keeps stdout free for stdio transports.
func openApp(full, quiet bool) (*app.App, error) {
	path, err := corecmd.ResolveConfigPath(configPath, "", defaultConfigPath)
	if err != nil {
		return nil, err
	}
	load := config.LoadStorage
	if full {
		load = config.Load
	}
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if quiet {
		cfg.Logging.Stderr = true
	}
	return app.New(cfg, app.Options{})
}

func closeApp(a *app.App) {
	_ = a.Close()
	_ = logger.Shutdown()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")

	listCmd.Flags().Int("page", 1, "1-based page number")
	listCmd.Flags().Int("size", reminder.DefaultPageSize, "reminders per page")

	sweepCmd.AddCommand(sweepDueCmd, sweepLookaheadCmd)
	rootCmd.AddCommand(runCmd, migrateCmd, sweepCmd, listCmd, mcpCmd, versionCmd)
}
