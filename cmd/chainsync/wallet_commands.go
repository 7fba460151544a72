package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainsync/client"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:        "wallet",
		Usage:       "Wallet tracking commands",
		Description: "Supported chains: " + supportedChains(),
		Subcommands: []*cli.Command{
			walletAddCommand(),
			walletRemoveCommand(),
			walletListCommand(),
			walletBalancesCommand(),
		},
	}
}

func supportedChains() string {
	tags := make([]string, 0, len(chain.All()))
	for _, c := range chain.All() {
		tags = append(tags, string(c))
	}
	return strings.Join(tags, ", ")
}

func walletAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Aliases:   []string{"register"},
		Usage:     "Register a wallet for tracking",
		ArgsUsage: "CHAIN ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Human-readable label"},
			&cli.StringFlag{Name: "kind", Value: "watch", Usage: "Wallet kind: watch or connected"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and wallet address are required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			req := client.AddWalletRequest{
				Chain:   c.Args().Get(0),
				Address: c.Args().Get(1),
				Kind:    c.String("kind"),
			}
			if label := c.String("label"); label != "" {
				req.Label = &label
			}

			wallet, created, err := cl.AddWallet(c.Context, req)
			if err != nil {
				return fmt.Errorf("failed to add wallet: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, map[string]interface{}{
					"created": created,
					"wallet":  wallet,
				})
			}

			if created {
				fmt.Printf("✓ Wallet registered successfully\n")
			} else {
				fmt.Printf("✓ Wallet already registered\n")
			}
			printWallet(wallet)
			return nil
		},
	}
}

func walletRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm", "delete", "unregister"},
		Usage:     "Stop tracking a wallet",
		ArgsUsage: "CHAIN ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and wallet address are required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			chainTag, address := c.Args().Get(0), c.Args().Get(1)
			if err := cl.RemoveWallet(c.Context, chainTag, address); err != nil {
				return fmt.Errorf("failed to remove wallet: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, map[string]interface{}{
					"chain":   chainTag,
					"address": address,
					"status":  "removed",
				})
			}
			fmt.Printf("✓ Wallet removed successfully\n")
			fmt.Printf("  Chain:   %s\n", chainTag)
			fmt.Printf("  Address: %s\n", address)
			return nil
		},
	}
}

func walletListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List tracked wallets",
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			wallets, err := cl.ListWallets(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, wallets)
			}

			if len(wallets) == 0 {
				fmt.Println("No wallets registered")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tADDRESS\tKIND\tLABEL\tLAST SYNC")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					wallet.Chain,
					wallet.Address,
					wallet.Kind,
					deref(wallet.Label, "-"),
					formatOptionalTime(wallet.LastSyncedAt),
				)
			}
			w.Flush()
			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func walletBalancesCommand() *cli.Command {
	return &cli.Command{
		Name:      "balances",
		Aliases:   []string{"balance", "bal"},
		Usage:     "Read live native and token balances for an address",
		ArgsUsage: "CHAIN ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and wallet address are required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			balances, err := cl.Balances(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("failed to get balances: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, balances)
			}
			printBalances(balances)
			return nil
		},
	}
}

func printWallet(wallet *client.Wallet) {
	fmt.Printf("  Chain:   %s\n", wallet.Chain)
	fmt.Printf("  Address: %s\n", wallet.Address)
	fmt.Printf("  Kind:    %s\n", wallet.Kind)
	if wallet.Label != nil {
		fmt.Printf("  Label:   %s\n", *wallet.Label)
	}
	fmt.Printf("  Added:   %s\n", wallet.CreatedAt.Format(time.RFC3339))
}

func printBalances(b *client.Balances) {
	fmt.Printf("%s on %s\n", b.Address, b.Chain)
	fmt.Printf("  %s: %s\n\n", b.NativeSymbol, b.NativeDisplay)

	if b.TokenError != "" {
		fmt.Fprintf(os.Stderr, "warning: token balances unavailable: %s\n", b.TokenError)
		return
	}
	if len(b.TokenBalances) == 0 {
		fmt.Println("No token balances")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tBALANCE\tCONTRACT")
	for _, tb := range b.TokenBalances {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			deref(tb.Symbol, "?"),
			deref(tb.Display, tb.Balance),
			tb.Contract,
		)
	}
	w.Flush()
}
