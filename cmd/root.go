// Package cmd wires the pendingfs command tree: configuration, provider
// selection and the interactive staging shell.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/pending"
)

// flagKeys maps persistent flags to their viper keys.
var flagKeys = map[string]string{
	"provider":      "provider",
	"root":          "root",
	"trash-dir":     "trash_dir",
	"cache-ttl":     "cache_ttl",
	"history-limit": "history_limit",
	"retries":       "retries",
	"metrics-addr":  "metrics_addr",
	"log-dir":       "log.dir",
	"log-level":     "log.level",
	"bucket":        "s3.bucket",
	"endpoint":      "s3.endpoint",
	"region":        "s3.region",
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string
	var cfg *Config

	root := &cobra.Command{
		Use:          "pendingfs",
		Short:        "Stage file operations in memory and commit them to a storage backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfigFile(v, cfgFile); err != nil {
				return err
			}
			c, err := loadConfig(v)
			if err != nil {
				return err
			}
			cfg = c
			logging.Init(logging.Options{
				Dir:    cfg.Log.Dir,
				Level:  logging.ParseLevel(cfg.Log.Level),
				Stdout: cmd.ErrOrStderr(),
				Stderr: cmd.ErrOrStderr(),
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.pendingfs/config.yaml)")
	pf.String("provider", ProviderLocal, "storage provider: local, memory or s3")
	pf.String("root", ".", "root directory for the local provider")
	pf.String("trash-dir", "", "move deleted entries here instead of removing them (local)")
	pf.Duration("cache-ttl", 5*time.Second, "listing cache TTL, 0 disables the cache")
	pf.Int("history-limit", pending.DefaultHistoryLimit, "undo history depth")
	pf.Uint64("retries", 0, "retries for retryable provider errors during commit")
	pf.String("metrics-addr", "", "serve prometheus metrics on this address")
	pf.String("log-dir", "", "directory for rotating log files")
	pf.String("log-level", "info", "console log level: debug, info, warn or error")
	pf.String("bucket", "", "bucket for the s3 provider")
	pf.String("endpoint", "", "custom S3 endpoint (path-style addressing)")
	pf.String("region", "", "S3 region")
	if err := bindFlags(v, pf); err != nil {
		panic(err)
	}

	root.AddCommand(newShellCmd(func() *Config { return cfg }))
	root.AddCommand(newConfigCmd(func() *Config { return cfg }))
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func newShellCmd(cfg func() *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive staging shell (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, cfg())
		},
	}
}

func newConfigCmd(cfg func() *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg()); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func runShell(cmd *cobra.Command, cfg *Config) error {
	ctx := cmd.Context()
	l := logging.Sub("cmd")

	provider, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	sh := newShell(newStore(cfg), provider, cmd.OutOrStdout())
	defer sh.Close()
	l.Info("shell starting", "provider", cfg.Provider)
	return sh.Run(ctx, cmd.InOrStdin())
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string) (stop func()) {
	l := logging.Sub("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", pending.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		l.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			l.Warn("metrics shutdown", "err", err)
		}
	}
}
