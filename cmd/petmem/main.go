package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/api"
	"github.com/a-marczewski/petmem/internal/app"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/doctor"
	"github.com/a-marczewski/petmem/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "petmem",
	Short: "petmem - Tiered event memory for desktop companions",
	Long: `petmem keeps a desktop companion's memory: a short recent window,
an importance-ranked tier with time decay, and a daily archive, all
exposed over a local HTTP API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a petmem.toml config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(importantCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(completionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memory server",
	RunE:  runServeCmd,
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	a, err := app.NewApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Core.Config
	logger := a.Core.Logger

	srv := api.NewServer(cfg, a.Store, a.Bridge, a.Snapshots, logger)

	a.Bridge.Start(a.Ctx)
	go a.Runner.Run(a.Ctx)
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	// Pick up config file edits without a restart
	if cfg.ConfigPath != "" {
		watcher, err := config.NewWatcher(cfg.ConfigPath, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			watcher.OnChange(srv.UpdateConfig)
			if err := watcher.Start(); err != nil {
				logger.Warn("config watcher failed to start", zap.Error(err))
			} else {
				defer watcher.Stop()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	return nil
}

var checkUpdates bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("petmem %s\n", version.Info())

		if checkUpdates {
			latest, err := version.CheckForUpdates()
			if err != nil {
				fmt.Printf("❌ Update check failed: %v\n", err)
				return
			}
			if latest == "" {
				fmt.Println("✅ You are on the latest version")
			} else {
				fmt.Printf("! A newer version is available: %s\n", latest)
			}
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&checkUpdates, "check", false, "Check GitHub for a newer release")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics on the petmem installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		doctor.NewRunner(cfg).RunAll().PrintReport()
		return nil
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate the autocompletion script for the specified shell",
	Long: `Generate the autocompletion script for petmem for the specified shell.
See each command's help for details on how to use the generated script.
	`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		switch args[0] {
		case "bash":
			err = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			err = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			err = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating completion script: %v\n", err)
			os.Exit(1)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
