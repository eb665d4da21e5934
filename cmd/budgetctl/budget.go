package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"budget/internal/backend"
	"budget/internal/core"
	"budget/internal/services"
	"budget/internal/worker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect registered users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of registered users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.CountUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("count users: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})
	return cmd
}

func incomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "List or set a user's income sources",
	}

	var userID int64
	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the user's income with monthly equivalents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			budget := services.NewBudgetService(repo, nil, logger, services.Config{})
			incomes, err := budget.Incomes(cmd.Context(), services.UserViewer(userID))
			if err != nil {
				return fmt.Errorf("list income: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "Navn\tBeløb\tFrekvens\tPr. måned\n")
			for _, inc := range incomes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inc.Person, core.FormatAmount(inc.Amount),
					inc.Frequency.Label(), core.FormatAmount(inc.MonthlyAmount()))
			}
			return nil
		},
	})

	var person, amount, frequency string
	set := &cobra.Command{
		Use:   "set",
		Short: "Add an income source or update the one with the same name",
		Example: `  budgetctl income set --user 1 --person "Person 1" --amount 28.000
  budgetctl income set --user 1 --person Bonus --amount 30000 --frequency semi-annual`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			money, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			freq, err := core.ParseFrequency(frequency)
			if err != nil {
				return fmt.Errorf("frequency %q: %w", frequency, err)
			}

			repo, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()
			if _, err := repo.GetUserByID(cmd.Context(), userID); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}

			budget := services.NewBudgetService(repo, nil, logger, services.Config{})
			inc := core.Income{Person: person, Amount: money, Frequency: freq}
			if err := budget.UpsertIncome(cmd.Context(), services.UserViewer(userID), inc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s per måned\n", person, core.FormatAmount(inc.MonthlyAmount()))
			return nil
		},
	}
	set.Flags().StringVar(&person, "person", "", "income source name")
	set.Flags().StringVar(&amount, "amount", "", "amount, e.g. 28.000 or 1234,50")
	set.Flags().StringVar(&frequency, "frequency", string(core.Monthly), "monthly, quarterly, semi-annual or yearly")
	_ = set.MarkFlagRequired("person")
	_ = set.MarkFlagRequired("amount")
	cmd.AddCommand(set)
	return cmd
}

func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Inspect the built-in demo budget",
	}
	var advanced bool
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the monthly summary of the demo budget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := core.BuildSummary(core.DemoIncome(advanced), core.DemoExpenses(advanced))
			writeSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
	summary.Flags().BoolVar(&advanced, "advanced", false, "use the advanced demo with accounts and an extra income")
	cmd.AddCommand(summary)
	return cmd
}

func writeSummary(out io.Writer, s core.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()

	fmt.Fprintf(w, "Kategori\tPr. måned\tAndel\t\n")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t\n", c.Name, core.FormatAmount(c.Total), c.Percent)
	}
	fmt.Fprintf(w, "\t\t\t\n")
	fmt.Fprintf(w, "Indkomst\t%s\t\t\n", core.FormatAmount(s.TotalIncome))
	fmt.Fprintf(w, "Udgifter\t%s\t\t\n", core.FormatAmount(s.TotalExpenses))
	fmt.Fprintf(w, "Til fri brug\t%s\t\t\n", core.FormatAmount(s.Remaining))
	for _, a := range s.AccountTotals {
		fmt.Fprintf(w, "Konto %s\t%s\t\t\n", a.Name, core.FormatAmount(a.Amount))
	}
}

func exportCmd() *cobra.Command {
	var (
		userID int64
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export yearly overviews to the configured backend",
		Long: `Export the current year's overview for one user (--user) or for every
user (--all). The backend is memory (a dry run that prints the result)
or sheets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID > 0) == all {
				return errors.New("use exactly one of --user or --all")
			}
			ctx := cmd.Context()

			backendCfg := backend.Config{
				Type:                backend.BackendType(viper.GetString("export.backend")),
				GoogleSpreadsheetID: viper.GetString("export.spreadsheet_id"),
				GoogleSheetPrefix:   viper.GetString("export.sheet_prefix"),
			}
			result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
			if err != nil {
				return err
			}
			if result.Cleanup != nil {
				defer result.Cleanup()
			}

			repo, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			budget := services.NewBudgetService(repo, nil, logger, services.Config{})
			exporter := worker.NewExportWorker(budget, repo, result.Exporter, logger, 4)

			if all {
				n, err := exporter.ExportAll(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d users\n", n)
				return err
			}

			ref, err := exporter.ExportUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("export user %d: %w", userID, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)

			if backendCfg.Type == backend.MemoryBackend {
				yo, err := result.Exporter.ReadOverview(ctx, userID, time.Now().Year())
				if err != nil {
					return fmt.Errorf("read back export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "income %s, expenses %s per year\n",
					core.FormatAmount(yo.Income.Total()), core.FormatAmount(yo.Expenses.Total()))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id to export")
	cmd.Flags().BoolVar(&all, "all", false, "export every user")
	cmd.Flags().String("backend", string(backend.MemoryBackend), "export backend (memory, sheets)")
	cmd.Flags().String("spreadsheet-id", "", "Google spreadsheet id for the sheets backend")
	cmd.Flags().String("sheet-prefix", "Budget", "tab name prefix for the sheets backend")
	_ = viper.BindPFlag("export.backend", cmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("export.spreadsheet_id", cmd.Flags().Lookup("spreadsheet-id"))
	_ = viper.BindPFlag("export.sheet_prefix", cmd.Flags().Lookup("sheet-prefix"))
	return cmd
}
