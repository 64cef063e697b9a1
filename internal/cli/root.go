// Package cli implements the tracker command line client. Every command loads
// the collection from the task store, runs at most one mutation through the
// coordinator and prints the resulting notification and status counts.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-tracker/internal/config"
	"github.com/BuzzLyutic/task-tracker/internal/coordinator"
	"github.com/BuzzLyutic/task-tracker/internal/remote"
	"github.com/BuzzLyutic/task-tracker/internal/store"
)

type app struct {
	out    io.Writer
	cfg    config.Config
	logger *zap.Logger
	client *remote.Client
	coord  *coordinator.Coordinator
	notes  *coordinator.ChanNotifier
	styles styles
	now    func() time.Time
}

// NewRootCmd builds the tracker command tree. Configuration comes from the
// environment and can be overridden with flags.
func NewRootCmd(version string) *cobra.Command {
	a := &app{now: time.Now}
	var (
		url      string
		timeout  time.Duration
		logLevel string
	)

	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Manage tasks on a task store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("url") {
				cfg.TrackerURL = url
			}
			if cmd.Flags().Changed("timeout") {
				cfg.RequestTimeout = timeout
			}
			if cmd.Flags().Changed("log-level") || os.Getenv("LOG_LEVEL") == "" {
				cfg.LogLevel = logLevel
			}
			return a.init(cmd.OutOrStdout(), cfg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVar(&url, "url", "", "task store base URL (default $TRACKER_URL)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-request timeout (default $TRACKER_TIMEOUT)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.editCmd(),
		a.statusCmd(),
		a.rmCmd(),
		a.statsCmd(),
	)
	return root
}

func (a *app) init(out io.Writer, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	a.out = out
	a.cfg = cfg
	a.logger = logger
	a.styles = newStyles(out)
	a.client = remote.New(cfg.TrackerURL, cfg.RequestTimeout, remote.WithObserver(remote.NewLogObserver(logger)))
	a.notes = coordinator.NewChanNotifier(cfg.NotifyBuffer, logger)
	a.coord = coordinator.New(store.New(), a.client, a.notes, logger)
	return nil
}

func (a *app) close() {
	if a.coord != nil {
		a.coord.Stop()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// load fetches the collection and shows the banner when that fails. The
// command carries on with an empty collection.
func (a *app) load(ctx context.Context) error {
	err := a.coord.Load(ctx)
	if msg, shown := a.coord.Banner(); shown {
		fmt.Fprintln(a.out, a.styles.banner.Render(fmt.Sprintf("%s: %s", msg, remote.KindOf(err))))
		a.drain()
		a.coord.DismissBanner()
	}
	return err
}

// finish prints whatever the coordinator reported and the counts line.
func (a *app) finish() {
	for _, n := range a.drain() {
		if n.OK {
			fmt.Fprintln(a.out, a.styles.ok.Render(n.String()))
		} else {
			fmt.Fprintln(a.out, a.styles.fail.Render(n.String()))
		}
	}
	a.printCounts()
}

func (a *app) drain() []coordinator.Notification {
	var out []coordinator.Notification
	for {
		select {
		case n := <-a.notes.C:
			out = append(out, n)
		default:
			return out
		}
	}
}
