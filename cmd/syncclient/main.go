// Command syncclient keeps a local copy of the schedule documents in step
// with a shiftsync server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erauner12/shiftsync/internal/client"
	"github.com/erauner12/shiftsync/internal/config"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/logging"
	"github.com/erauner12/shiftsync/internal/syncx"
)

var rootCmd = &cobra.Command{
	Use:   "syncclient",
	Short: "Sync a device's schedules, assignments and day-parts with a shiftsync server",
	Long: `syncclient is a device-side client for the shiftsync sync endpoints.

It keeps a local bolt database holding the documents for the watched date
and the last record adopted for each sync key. Conflicts are resolved by
last-write-wins on the record timestamp.

Example usage:
  syncclient watch                          # poll today's keys every 10s
  syncclient watch --date 2024-06-01        # watch a fixed date
  syncclient get daypart_2024-06-01         # print the server record
  syncclient push daypart_2024-06-01 d.json # save locally and push
  syncclient status                         # run one pass and report`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().String("server", "", "server base URL (overrides client.server_url)")
	rootCmd.PersistentFlags().String("device", "", "device id (overrides client.device_id)")
	rootCmd.PersistentFlags().String("cache", "", "local bolt database (overrides client.cache_path)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deviceCategory holds the persisted device identity.
const deviceCategory = "client"

// session is everything a command needs to talk to the server.
type session struct {
	cfg      *config.Config
	store    *kvstore.Bolt
	http     *client.HTTPClient
	api      *client.SyncClient
	cache    *syncx.KVRecords
	applier  client.StoreApplier
	deviceID string
	logFile  io.Closer
}

func openSession(cmd *cobra.Command) (*session, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("device"); v != "" {
		cfg.Client.DeviceID = v
	}
	if v, _ := cmd.Flags().GetString("cache"); v != "" {
		cfg.Client.CachePath = v
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	logFile, err := logging.Setup("shiftsync-client", cfg.IsDev(), cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.OpenBolt(cfg.Client.CachePath)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	deviceID, err := loadDeviceID(cmd.Context(), store, cfg.Client.DeviceID)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}

	var opts []client.Option
	if cfg.Client.Token != "" {
		opts = append(opts, client.WithToken(cfg.Client.Token))
	} else if cfg.Client.DebugSub != "" {
		opts = append(opts, client.WithDebugSubject(cfg.Client.DebugSub))
	}
	hc := client.NewHTTPClient(cfg.Client.ServerURL, deviceID, opts...)

	return &session{
		cfg:      cfg,
		store:    store,
		http:     hc,
		api:      client.NewSyncClient(hc),
		cache:    syncx.NewKVRecords(store),
		applier:  client.StoreApplier{Store: store},
		deviceID: deviceID,
		logFile:  logFile,
	}, nil
}

func (s *session) Close() {
	s.http.CloseIdleConnections()
	if err := s.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close local store")
	}
	s.logFile.Close()
}

// loadDeviceID returns configured, or the id persisted in store, creating
// one on first use.
func loadDeviceID(ctx context.Context, store kvstore.Store, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	type identity struct {
		DeviceID string `json:"deviceId"`
	}
	ids := kvstore.NewCollection[identity](store, deviceCategory)
	id, err := ids.Get(ctx, "device")
	if err != nil {
		return "", err
	}
	if id != nil && id.DeviceID != "" {
		return id.DeviceID, nil
	}
	created := identity{DeviceID: uuid.New().String()}
	if _, err := ids.Put(ctx, "device", created); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return created.DeviceID, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
