package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nebulafusion/nebula/internal/config"
	"github.com/nebulafusion/nebula/internal/plugin"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nebula",
		Short:         "NebulaFusion browser plugin host",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	root.AddCommand(
		newRunCmd(&configPath),
		newPluginsCmd(&configPath),
	)
	return root
}

// loadConfig reads the configuration and applies the log level.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	return cfg, nil
}

func newManager(cfg config.Config) (*plugin.Manager, error) {
	return plugin.NewManager(plugin.Config{
		Dirs:        cfg.PluginDirs(),
		Limits:      cfg.Plugins.Limits,
		BlockedURLs: cfg.Security.BlockedURLs,
	})
}

func newRunCmd(configPath *string) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load all plugins and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			mgr, err := newManager(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr.LoadAll(ctx)
			log.WithField("plugins", len(mgr.Plugins())).Info("plugin host running")

			if watch || cfg.Plugins.Watch {
				if err := mgr.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Warn("plugin watcher stopped")
				}
			} else {
				<-ctx.Done()
			}

			mgr.Shutdown(context.Background())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload plugins on directory changes")
	return cmd
}

func newPluginsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage installed plugins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := managerFor(*configPath)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(context.Background())

			mgr.LoadAll(cmd.Context())
			for _, info := range mgr.Plugins() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %-10s %s\n",
					info.Manifest.ID, info.Manifest.Version, info.State, info.Manifest.Description)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install <archive.zip>",
		Short: "Install a plugin from a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := managerFor(*configPath)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(context.Background())

			id, err := mgr.Install(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall <id>",
		Short: "Remove an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := managerFor(*configPath)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(context.Background())

			mgr.LoadAll(cmd.Context())
			if err := mgr.Uninstall(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <id>",
		Short: "Scaffold a new plugin in the user plugin directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := managerFor(*configPath)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(context.Background())

			user := os.Getenv("USER")
			if user == "" {
				user = "unknown"
			}
			dir, err := mgr.CreateTemplate(args[0], args[0], user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", dir)
			return nil
		},
	})

	return cmd
}

func managerFor(configPath string) (*plugin.Manager, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newManager(cfg)
}
