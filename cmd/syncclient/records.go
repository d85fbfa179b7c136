package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/erauner12/shiftsync/internal/client"
	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/syncx"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the server's record for a sync key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.api.GetRecord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no record for %s", args[0])
		}
		return printJSON(cmd, rec)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <key> <file|->",
	Short: "Save a document locally and push it to the server",
	Long: `Read a schedule, assignment or day-part document from a file (or stdin
when the file is -), write it to the local store and push it under key.

If the server already holds a newer record the push is rejected and the
command reports that the write lost.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, src := args[0], args[1]
		k, ok := syncx.ParseKey(key)
		if !ok {
			return fmt.Errorf("%w: %q", client.ErrUnknownKey, key)
		}

		var r io.Reader = cmd.InOrStdin()
		if src != "-" {
			f, err := os.Open(src)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		doc, err := domain.DecodeDoc(k.Category, json.RawMessage(raw))
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		w := client.NewWriter(s.api, s.cache, s.applier, s.deviceID)
		res, err := w.Save(cmd.Context(), key, doc)
		if err != nil {
			return err
		}
		if !res.Updated {
			fmt.Fprintf(cmd.OutOrStdout(), "write lost: server holds a newer record (%s)\n", syncx.RFC3339(res.Timestamp))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pushed %s at %s\n", key, syncx.RFC3339(res.Timestamp))
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the sync keys the server holds records for",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := s.api.ListKeys(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run one reconciliation pass and report the result",
	Args:  cobra.NoArgs,
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
		rec := client.NewReconciler(client.ReconcilerConfig{
			API:     s.api,
			Cache:   s.cache,
			Applier: s.applier,
			Keys:    keys,
		})
		res, _ := rec.RunOnce(cmd.Context())

		return printJSON(cmd, struct {
			Device string            `json:"deviceId"`
			Server string            `json:"server"`
			Status client.Status     `json:"status"`
			Pass   client.PassResult `json:"pass"`
		}{s.deviceID, s.http.BaseURL(), rec.Status(), res})
	},
}

func init() {
	statusCmd.Flags().String("date", "", "date to check (default: today)")
	rootCmd.AddCommand(getCmd, pushCmd, keysCmd, statusCmd)
}
