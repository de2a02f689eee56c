// Command monicd runs the address indexer: it drives the commit
// engine against an upstream JSON-RPC endpoint and serves the query
// API over HTTP, per spec.md §6.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/spf13/cobra"

	"github.com/lgaroche/monique-indexer/internal/commit"
	"github.com/lgaroche/monique-indexer/internal/config"
	"github.com/lgaroche/monique-indexer/internal/httpapi"
	"github.com/lgaroche/monique-indexer/internal/kvstore"
	"github.com/lgaroche/monique-indexer/internal/query"
	"github.com/lgaroche/monique-indexer/internal/rpcchain"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "monicd",
		Short: "monicd indexes chain addresses into monic phrases and serves lookups",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a monicd.toml config file")
	root.PersistentFlags().StringVar(&cfg.RPCURL, "rpc-url", cfg.RPCURL, "upstream JSON-RPC endpoint")
	root.PersistentFlags().StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "MDBX data directory")
	root.PersistentFlags().Uint64Var(&cfg.StartBlock, "start-block", cfg.StartBlock, "block number to resume ingestion from when no head is persisted")
	root.PersistentFlags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "consecutive blocks committed per atomic write")
	root.PersistentFlags().StringVar(&cfg.BindAddr, "bind-addr", cfg.BindAddr, "address the query API listens on")

	resolveConfig := func() (config.Config, error) {
		if configPath == "" {
			return cfg, nil
		}
		return config.LoadFile(configPath, cfg)
	}

	root.AddCommand(runCmd(resolveConfig))
	root.AddCommand(verifyCmd(resolveConfig))
	return root
}

func runCmd(resolveConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "ingest new blocks and serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.New()
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, err := kvstore.Open(logger, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("monicd: opening db: %w", err)
			}
			defer db.Close()

			chain, err := rpcchain.Dial(ctx, cfg.RPCURL)
			if err != nil {
				return fmt.Errorf("monicd: dialing %s: %w", cfg.RPCURL, err)
			}
			defer chain.Close()

			engine := commit.New(db, chain, logger, cfg.BatchSize)
			server := httpapi.New(query.New(db), engine)

			errs := make(chan error, 2)
			go func() {
				logger.Info("starting ingestion", "rpc_url", cfg.RPCURL, "batch_size", cfg.BatchSize)
				errs <- engine.Run(ctx, cfg.StartBlock)
			}()
			go func() {
				logger.Info("starting query API", "bind_addr", cfg.BindAddr)
				errs <- server.ListenAndServe(ctx, cfg.BindAddr)
			}()

			select {
			case <-ctx.Done():
				return nil
			case err := <-errs:
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		},
	}
}

func verifyCmd(resolveConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "recompute the address trie root from persisted state and compare it against the stored head",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("monicd: db-path is required")
			}

			logger := log.New()
			db, err := kvstore.Open(logger, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("monicd: opening db: %w", err)
			}
			defer db.Close()

			engine := commit.New(db, nil, logger, 1)
			if err := engine.VerifyIntegrity(cmd.Context()); err != nil {
				return fmt.Errorf("monicd: integrity check failed: %w", err)
			}
			logger.Info("integrity check passed")
			return nil
		},
	}
}
