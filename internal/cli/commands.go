// Package cli implements the ledgerctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/atmx/portfolio-engine/internal/client"
	"github.com/atmx/portfolio-engine/internal/format"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/trade"
)

const defaultServer = "http://localhost:8080"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var server string

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and trade against a running portfolio engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	newClient := func() *client.Client { return client.New(server) }

	rootCmd.AddCommand(newInstrumentsCmd(newClient))
	rootCmd.AddCommand(newPortfolioCmd(newClient))
	rootCmd.AddCommand(newTransactionsCmd(newClient))
	rootCmd.AddCommand(newTradeCmd(model.TxBuy, newClient))
	rootCmd.AddCommand(newTradeCmd(model.TxSell, newClient))
	rootCmd.AddCommand(newTickCmd(newClient))

	defaultURL := os.Getenv("LEDGER_URL")
	if defaultURL == "" {
		defaultURL = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&server, "server", defaultURL, "Engine base URL")

	return rootCmd
}

func newInstrumentsCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List instruments and their latest prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient().Instruments(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSYMBOL\tPRICE\t24H\tMARKET CAP")
			for _, in := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					in.ID, in.Symbol, format.Currency(in.Price),
					format.Percent(in.ChangePercent24h), format.Currency(in.MarketCap))
			}
			return tw.Flush()
		},
	}
}

func newPortfolioCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show cash, holdings and profit/loss",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newClient().Portfolio(cmd.Context())
			if err != nil {
				return err
			}
			printPortfolio(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func printPortfolio(w io.Writer, p *trade.PortfolioResponse) {
	fmt.Fprintf(w, "Cash:        %s\n", p.Display.Cash)
	fmt.Fprintf(w, "Holdings:    %s\n", p.Display.TotalValue)
	fmt.Fprintf(w, "Net worth:   %s\n", p.Display.NetWorth)
	fmt.Fprintf(w, "P/L:         %s (%s)\n", p.Display.ProfitLoss, p.Display.ProfitLossPercent)
	fmt.Fprintf(w, "Updated:     %s\n", p.Display.LastUpdated)
	if p.Error != "" {
		fmt.Fprintf(w, "Last error:  %s\n", p.Error)
	}
	if len(p.Display.Holdings) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tQUANTITY\tVALUE\tP/L")
	for _, h := range p.Display.Holdings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.InstrumentID, h.Quantity, h.Value, h.ProfitLossPercent)
	}
	tw.Flush()
}

func newTransactionsCmd(newClient func() *client.Client) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := model.TxType(typ)
			if t != "" && !t.Valid() {
				return fmt.Errorf("--type must be buy or sell")
			}
			resp, err := newClient().Transactions(cmd.Context(), t)
			if err != nil {
				return err
			}

			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTIME\tTYPE\tQUANTITY\tPRICE\tTOTAL\tFEE")
			for _, tx := range resp.Transactions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					format.RelativeDate(tx.Timestamp, now), format.Clock(tx.Timestamp.Local()), tx.Type,
					format.Quantity(tx.Quantity, tx.Symbol), format.Currency(tx.Price),
					format.Currency(tx.Total), format.Currency(tx.Fee))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d transactions, %s in fees\n", resp.Count, format.Currency(resp.TotalFees))
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Only show buy or sell transactions")
	return cmd
}

func newTradeCmd(typ model.TxType, newClient func() *client.Client) *cobra.Command {
	var priceFlag string
	cmd := &cobra.Command{
		Use:   string(typ) + " ID QUANTITY",
		Short: fmt.Sprintf("%s an instrument at its current or a given price", titleCase(string(typ))),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			var price *decimal.Decimal
			if priceFlag != "" {
				p, err := decimal.NewFromString(priceFlag)
				if err != nil {
					return fmt.Errorf("invalid price %q: %w", priceFlag, err)
				}
				price = &p
			}

			c := newClient()
			var resp *trade.TradeResponse
			if typ == model.TxBuy {
				resp, err = c.Buy(cmd.Context(), args[0], qty, price)
			} else {
				resp, err = c.Sell(cmd.Context(), args[0], qty, price)
			}
			if err != nil {
				return err
			}

			tx := resp.Transaction
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s (fee %s), cash %s\n",
				titleCase(string(tx.Type)), format.Quantity(tx.Quantity, tx.Symbol),
				format.Currency(tx.Price), format.Currency(tx.Fee), resp.Portfolio.Display.Cash)
			return nil
		},
	}
	cmd.Flags().StringVar(&priceFlag, "price", "", "Limit price (defaults to the current price)")
	return cmd
}

func newTickCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "tick ID PRICE",
		Short: "Set an instrument's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}
			list, err := newClient().Tick(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			for _, in := range list {
				if in.ID == args[0] {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", in.Symbol, format.Currency(in.Price), format.Percent(in.ChangePercent24h))
					return nil
				}
			}
			return fmt.Errorf("instrument %s not found", args[0])
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
