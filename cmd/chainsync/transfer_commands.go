package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainsync/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func transferCommands() *cli.Command {
	return &cli.Command{
		Name:    "transfers",
		Aliases: []string{"transfer", "tx"},
		Usage:   "Transfer ledger commands",
		Subcommands: []*cli.Command{
			transferListCommand(),
			transferAwaitCommand(),
		},
	}
}

func mustJQFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "must-jq",
		Usage: "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
	}
}

func compileFilters(exprs []string) ([]*gojq.Code, error) {
	filters := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		filters[i] = code
	}
	return filters, nil
}

func transferListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List ledger transfers, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50, Usage: "Maximum number of transfers (1-1000)"},
			&cli.IntFlag{Name: "offset", Usage: "Skip this many transfers"},
			mustJQFlag(),
		},
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("limit must be between 1 and 1000")
			}
			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			page, err := cl.ListTransfers(c.Context, client.RunFilter{
				Chain:   c.String("chain"),
				Address: c.String("address"),
				Limit:   limit,
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}

			matched := make([]*client.Transfer, 0, len(page.Transfers))
			for _, t := range page.Transfers {
				ok, err := matchAll(filters, t)
				if err != nil {
					return fmt.Errorf("jq filter failed: %w", err)
				}
				if ok {
					matched = append(matched, t)
				}
			}

			if jsonMode(c) {
				page.Transfers = matched
				page.Count = len(matched)
				return outputJSON(c, page)
			}

			if len(matched) == 0 {
				fmt.Println("No transfers found")
				return nil
			}
			printTransfers(matched)
			fmt.Fprintf(os.Stderr, "\nShowing %d of %d transfers (offset %d)\n", len(matched), page.Total, page.Offset)
			return nil
		},
	}
}

func transferAwaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Block until a transfer matching criteria is imported",
		ArgsUsage: "CHAIN ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hash", Usage: "Filter by exact transaction hash"},
			&cli.StringFlag{Name: "direction", Usage: "Filter by direction: sent or received"},
			mustJQFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait for a transfer",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and wallet address are required")
			}
			hash := c.String("hash")
			direction := c.String("direction")
			exprs := c.StringSlice("must-jq")
			if hash == "" && direction == "" && len(exprs) == 0 {
				return fmt.Errorf("must specify at least one filter: --hash, --direction, or --must-jq")
			}
			filters, err := compileFilters(exprs)
			if err != nil {
				return err
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			matcher := func(ev client.TransferEvent) (bool, error) {
				if hash != "" && ev.Transfer.Hash != hash {
					return false, nil
				}
				if direction != "" && ev.Direction != direction {
					return false, nil
				}
				return matchAll(filters, ev.Transfer)
			}

			chainTag, address := c.Args().Get(0), c.Args().Get(1)
			timeout := c.Duration("timeout")
			if !jsonMode(c) {
				fmt.Fprintf(os.Stderr, "Waiting for transfer on %s wallet %s...\n", chainTag, address)
				for _, expr := range exprs {
					fmt.Fprintf(os.Stderr, "  jq Filter: %s\n", expr)
				}
				fmt.Fprintf(os.Stderr, "  Timeout: %v\n\n", timeout)
			}

			ctx, cancel := context.WithTimeout(c.Context, timeout)
			defer cancel()

			var found *client.TransferEvent
			err = cl.StreamTransfers(ctx, chainTag, address, func(ev client.TransferEvent) error {
				ok, err := matcher(ev)
				if err != nil || !ok {
					return nil
				}
				found = &ev
				return client.ErrStopStream
			})
			if err != nil {
				return fmt.Errorf("failed to await transfer: %w", err)
			}
			if found == nil {
				return fmt.Errorf("no matching transfer within %s", timeout)
			}

			if jsonMode(c) {
				return outputJSON(c, found)
			}
			printTransferDetailed(&found.Transfer, found.Direction)
			return nil
		},
	}
}

func printTransfers(transfers []*client.Transfer) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tCHAIN\tDIRECTION\tAMOUNT\tASSET\tCOUNTERPARTY\tHASH")
	for _, t := range transfers {
		counterparty := t.From
		if t.Direction == "sent" {
			counterparty = deref(t.To, "-")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Timestamp,
			t.Chain,
			t.Direction,
			deref(t.Display, t.Value),
			deref(t.Asset, "-"),
			counterparty,
			t.Hash,
		)
	}
	w.Flush()
}

func printTransferDetailed(t *client.Transfer, direction string) {
	fmt.Printf("✓ Transfer found\n")
	fmt.Printf("  Hash:      %s\n", t.Hash)
	fmt.Printf("  Chain:     %s\n", t.Chain)
	fmt.Printf("  Direction: %s\n", direction)
	fmt.Printf("  From:      %s\n", t.From)
	fmt.Printf("  To:        %s\n", deref(t.To, "-"))
	fmt.Printf("  Amount:    %s %s\n", deref(t.Display, t.Value), deref(t.Asset, ""))
	fmt.Printf("  Category:  %s\n", t.Category)
	fmt.Printf("  Block:     %s\n", t.Block)
	fmt.Printf("  Timestamp: %s\n", t.Timestamp)
}
