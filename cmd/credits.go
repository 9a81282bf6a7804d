package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCreditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and top up user credit balances",
	}
	cmd.AddCommand(newCreditsGetCmd())
	cmd.AddCommand(newCreditsAddCmd())
	cmd.AddCommand(newCreditsHistoryCmd())
	return cmd
}

func newCreditsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "get <user-id>",
		Short:        "Print a user's balance (creates the initial grant if missing)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			balance, err := a.ledger.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", args[0], balance)
			return nil
		},
	}
}

func newCreditsAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:          "add <user-id> <amount>",
		Short:        "Add credits to a user",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.ledger.Add(cmd.Context(), args[0], amount, description); err != nil {
				return err
			}
			balance, err := a.ledger.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: +%d -> %d\n", args[0], amount, balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "Manual top-up", "Transaction description")
	return cmd
}

func newCreditsHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:          "history <user-id>",
		Short:        "Print a user's credit transactions, newest first",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			txs, err := a.ledger.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tAMOUNT\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%s\t%+d\t%s\n", tx.CreatedAt.Format(time.RFC3339), tx.Type, tx.Amount, tx.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of transactions")
	return cmd
}
