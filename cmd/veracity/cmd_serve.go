package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spboyer/veracity/internal/cache"
	"github.com/spboyer/veracity/internal/history"
	"github.com/spboyer/veracity/internal/webapi"
	"github.com/spboyer/veracity/internal/webserver"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var (
		port    int
		host    string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the detection HTTP API",
		Long: `Start the detection HTTP API.

Endpoints:
  POST /api/detect        Score {"text": "..."}
  GET  /api/history       Past detections, newest first (?limit=N)
  GET  /api/history/{id}  One past detection
  GET  /api/summary       Totals across all past detections
  GET  /api/health        Liveness and ensemble info

When the environment variable named by server.api_keys_env holds a comma
separated list of keys, every endpoint except health requires one of them as
a bearer token or X-API-Key header.

The server binds to 127.0.0.1 unless --host says otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			agg, err := buildEnsemble(cfg, offline)
			if err != nil {
				return err
			}

			var detector webapi.Detector = agg
			c, err := openCache(cfg)
			if err != nil {
				return err
			}
			if c != nil {
				defer closeCache(c)
				detector = cache.NewCachedDetector(agg, c)
			}

			var infos []webapi.DetectorInfo
			for _, d := range agg.Detectors() {
				infos = append(infos, webapi.DetectorInfo{Name: d.Name(), Type: string(d.Type()), Weight: d.Weight()})
			}

			keys := webapi.ParseAPIKeys(os.Getenv(cfg.Server.APIKeysEnv))
			if host != "127.0.0.1" && host != "localhost" && len(keys) == 0 {
				slog.Warn("API server reachable from the network with no API keys configured",
					"host", host, "env", cfg.Server.APIKeysEnv)
			}

			srv, err := webserver.New(webserver.Config{
				Host: host,
				Port: cfg.Server.Port,
				API: webapi.Deps{
					Detector:  detector,
					History:   history.NewFileStore(cfg.Server.HistoryDir),
					MaxWords:  cfg.Defaults.MaxWords,
					Ensemble:  agg.Fingerprint(),
					Detectors: infos,
				},
				AllowedOrigins: cfg.Server.AllowedOrigins,
				APIKeys:        keys,
				Logger:         slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config, 3000)")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Interface to bind")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the local heuristic instead of provider APIs")

	return cmd
}
