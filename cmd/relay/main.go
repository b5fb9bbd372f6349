// File: cmd/relay/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/workflow-relay/internal/config"
	"github.com/smartdevs17/workflow-relay/internal/storage"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "workflow-relay",
	Short:   "Workflow execution log relay",
	Long:    `Relays the latest article and workflow execution logs between a workflow engine and a presentation client.`,
	Version: AppVersion,
	RunE:    runRelay,
}

// loadConfig loads .env files and the configuration named by --config
func loadConfig() (*config.Config, error) {
	config.LoadEnv(utils.GetLogger())

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runRelay is the main command to run the relay
func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Stop()

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("relay stopped with error: %w", err)
	}
	return nil
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Workflow Relay %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration is valid!\n")
		fmt.Fprintf(out, "Environment: %s\n", cfg.App.Environment)
		fmt.Fprintf(out, "Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Fprintf(out, "Storage: %s\n", cfg.Storage.Type)
		if cfg.Storage.IsDurable() && !cfg.Storage.HasUsableConnection() {
			fmt.Fprintf(out, "Warning: no usable %s connection configured, logs will not be kept\n", cfg.Storage.Type)
		}
		fmt.Fprintf(out, "Article slot: %s\n", cfg.Article.Type)

		return nil
	},
}

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Log storage commands",
}

// storageStatusCmd reports whether the configured log store is reachable
var storageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect to the configured log store and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format, "discard", ""); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		store := storage.Open(ctx, &cfg.Storage)
		defer store.Close()

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(store.Status(ctx))
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format, "discard", ""); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		fmt.Fprintln(out, "Testing workflow relay connectivity...")

		// Test storage
		fmt.Fprintf(out, "Testing storage connection (%s)...\n", cfg.Storage.Type)
		store := storage.Open(ctx, &cfg.Storage)
		defer store.Close()
		if err := checkStorage(ctx, store); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Storage connection successful")

		// Test article slot
		fmt.Fprintf(out, "Testing article slot (%s)...\n", cfg.Article.Type)
		articles := storage.NewArticleSlot(ctx, &cfg.Article)
		defer articles.Close()
		if _, ok := articles.(*storage.RedisArticleSlot); cfg.Article.Type == config.ArticleTypeRedis && !ok {
			return fmt.Errorf("redis at %s unavailable", cfg.Article.RedisAddr)
		}
		fmt.Fprintln(out, "✓ Article slot ready")

		fmt.Fprintln(out, "\nAll connectivity tests passed! ✓")
		return nil
	},
}

// init initializes the CLI commands
func init() {
	// Add persistent flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
	storageCmd.AddCommand(storageStatusCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
