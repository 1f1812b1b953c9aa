package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/viewkit/viewkit"
	"github.com/viewkit/viewkit/logging"
	transport "github.com/viewkit/viewkit/transport/http"
)

func loadConfig(path, provider, providerParams, logLevel string) (viewkit.Config, error) {
	cfg := viewkit.DefaultConfig()
	if path != "" {
		bits, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if cfg, err = viewkit.LoadConfig(bits); err != nil {
			return cfg, err
		}
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if providerParams != "" {
		params := map[string]any{}
		if err := json.Unmarshal([]byte(providerParams), &params); err != nil {
			return cfg, fmt.Errorf("failed to parse provider params: %w", err)
		}
		cfg.Params = params
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func serveCmd() *cobra.Command {
	var (
		port           int
		configPath     string
		provider       string
		providerParams string
		logLevel       string
		designDir      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve a bucket over http",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, provider, providerParams, logLevel)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			logger, err := logging.New(cfg.LogLevel, map[string]any{"service": "viewkit"})
			if err != nil {
				return err
			}
			defer logger.Sync(ctx)
			bucket, err := viewkit.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer bucket.Close(context.Background())
			if designDir != "" {
				names, err := loadDesigns(ctx, bucket, designDir)
				if err != nil {
					return err
				}
				logger.Info(ctx, "design documents loaded", map[string]any{"designs": names})
			}
			server := &http.Server{
				Addr:              fmt.Sprintf(":%v", port),
				Handler:           transport.Handler(bucket, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			egp, ctx := errgroup.WithContext(ctx)
			egp.Go(func() error {
				logger.Info(ctx, "starting http server", map[string]any{"port": port})
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			egp.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			return egp.Wait()
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port to serve on")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a yaml or json config file")
	cmd.Flags().StringVar(&provider, "provider", "", "kv provider (default badger)")
	cmd.Flags().StringVar(&providerParams, "provider-params", "", "kv provider params (json)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&designDir, "design", "", "directory of design documents to load on startup")
	return cmd
}
