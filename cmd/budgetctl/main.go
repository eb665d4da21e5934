package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *applog.Logger
	rootCmd = &cobra.Command{
		Use:   "budgetctl",
		Short: "Administer a budget installation",
		Long: `budgetctl runs maintenance tasks against the budget database:
schema migrations, user statistics, demo data and spreadsheet exports.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./budgetctl.yaml)")
	rootCmd.PersistentFlags().String("db", "./data/budget.db", "path to the SQLite database")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, text, json)")

	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(incomeCmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("budgetctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUDGETCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger = applog.New(applog.Config{
		Level:     applog.ParseLevel(viper.GetString("logging.level")),
		Format:    viper.GetString("logging.format"),
		Component: "budgetctl",
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	return nil
}

// openRepository opens the configured database, applying pending
// migrations.
func openRepository() (*storage.SQLiteRepository, error) {
	path := viper.GetString("db_path")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return repo, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "budgetctl", cli.Version())
		},
	}
}
