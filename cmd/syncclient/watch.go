package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erauner12/shiftsync/internal/client"
	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/syncx"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the server and adopt newer records until interrupted",
	Long: `Run the reconciler: every poll interval, fetch the record for each
watched key and adopt it when it is newer than the local copy.

Unless --no-events is set, the client also listens on /api/events and
runs an extra pass whenever the server reports a change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := watchedKeys(cmd)
		if err != nil {
			return err
		}
		noEvents, _ := cmd.Flags().GetBool("no-events")

		rec := client.NewReconciler(client.ReconcilerConfig{
			API:      s.api,
			Cache:    s.cache,
			Applier:  s.applier,
			Keys:     keys,
			Interval: s.cfg.Sync.PollInterval,
			OnPass: func(res client.PassResult) {
				if res.Applied > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s adopted %d record(s)\n", res.At.Format(time.TimeOnly), res.Applied)
				}
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return rec.Run(ctx) })
		if !noEvents {
			sub := client.NewEventSubscriber(s.http, func(c notify.Change) {
				log.Debug().Str("key", c.Key).Str("action", string(c.Action)).Msg("Change event")
				rec.Trigger()
			})
			g.Go(func() error { return sub.Run(ctx) })
		}

		fmt.Fprintf(cmd.OutOrStdout(), "watching as device %s, press Ctrl+C to stop\n", s.deviceID)
		return g.Wait()
	},
}

// watchedKeys returns the key set for --date, or for the current day when unset.
func watchedKeys(cmd *cobra.Command) (func() []string, error) {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		return func() []string { return syncx.WatchedKeys(domain.DateOf(time.Now())) }, nil
	}
	if !domain.ValidDate(date) {
		return nil, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
	}
	keys := syncx.WatchedKeys(date)
	return func() []string { return keys }, nil
}

func init() {
	watchCmd.Flags().String("date", "", "date to watch (default: today)")
	watchCmd.Flags().Bool("no-events", false, "poll only, without the websocket change feed")
	rootCmd.AddCommand(watchCmd)
}

