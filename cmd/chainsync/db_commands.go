package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the schema (idempotent)",
		Action: func(c *cli.Context) error {
			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(c.Context, pool); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ Schema applied")
			return nil
		},
	}
}

func listWalletsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-wallets",
		Usage:   "List wallets (all active wallets unless --owner is set)",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			var wallets []*db.Wallet
			if owner := c.String("owner"); owner != "" {
				wallets, err = store.ListWallets(c.Context, owner)
			} else {
				wallets, err = store.ListActiveWallets(c.Context)
			}
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, wallets)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OWNER\tCHAIN\tADDRESS\tKIND\tLABEL\tLAST SYNC\tCREATED")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					wallet.OwnerID,
					wallet.Chain,
					wallet.Address,
					wallet.Kind,
					deref(wallet.Label, "-"),
					formatOptionalTime(wallet.LastSyncedAt),
					wallet.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func listRunsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-runs",
		Usage:   "List sync runs for an owner, newest first",
		Aliases: []string{"runs"},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50, Usage: "Limit number of runs"},
		},
		Action: func(c *cli.Context) error {
			owner, err := requireOwnerFlag(c)
			if err != nil {
				return err
			}
			chainFilter, addressFilter, err := chainAddressFlags(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			runs, err := store.ListSyncRuns(c.Context, db.ListSyncRunsParams{
				OwnerID:       owner,
				Chain:         chainFilter,
				WalletAddress: addressFilter,
				Limit:         int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list sync runs: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHAIN\tWALLET\tSTATUS\tIMPORTED\tSTARTED\tCOMPLETED\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					run.ID,
					run.Chain,
					run.WalletAddress,
					run.Status,
					run.ImportedCount,
					run.StartedAt.Format(time.RFC3339),
					formatOptionalTime(run.CompletedAt),
					deref(run.ErrorMessage, ""),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d runs\n", len(runs))
			return nil
		},
	}
}

func listApprovalsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-approvals",
		Usage:   "List stored token approvals for an owner",
		Aliases: []string{"approvals"},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.BoolFlag{Name: "include-revoked", Usage: "Include revoked approvals"},
		},
		Action: func(c *cli.Context) error {
			owner, err := requireOwnerFlag(c)
			if err != nil {
				return err
			}
			chainFilter, addressFilter, err := chainAddressFlags(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			items, err := store.ListTokenApprovals(c.Context, db.ListTokenApprovalsParams{
				OwnerID:        owner,
				IncludeRevoked: c.Bool("include-revoked"),
				Chain:          chainFilter,
				WalletAddress:  addressFilter,
			})
			if err != nil {
				return fmt.Errorf("failed to list approvals: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, items)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHAIN\tWALLET\tTOKEN\tSPENDER\tRISK\tUNLIMITED\tREVOKED")
			for _, a := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\t%t\n",
					a.ID,
					a.Chain,
					a.WalletAddress,
					deref(a.TokenSymbol, a.TokenAddress),
					deref(a.SpenderName, a.SpenderAddress),
					a.RiskLevel,
					a.IsUnlimited,
					a.IsRevoked,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d approvals\n", len(items))
			return nil
		},
	}
}

func listTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transfers",
		Usage:   "List ledger transfers for an owner, newest first",
		Aliases: []string{"transfers"},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50, Usage: "Limit number of transfers"},
			&cli.IntFlag{Name: "offset", Usage: "Skip this many transfers"},
		},
		Action: func(c *cli.Context) error {
			owner, err := requireOwnerFlag(c)
			if err != nil {
				return err
			}
			chainFilter, addressFilter, err := chainAddressFlags(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transfers, err := store.ListTransfers(c.Context, db.ListTransfersParams{
				OwnerID:       owner,
				Chain:         chainFilter,
				WalletAddress: addressFilter,
				Limit:         int32(c.Int("limit")),
				Offset:        int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, transfers)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tHASH\tDIRECTION\tCATEGORY\tASSET\tVALUE\tBLOCK\tTIMESTAMP")
			for _, t := range transfers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.Chain,
					t.Hash,
					t.Direction,
					t.Category,
					deref(t.Asset, "-"),
					t.Value,
					t.Block,
					t.Timestamp,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nShowing %d transfers\n", len(transfers))
			return nil
		},
	}
}

// getPool connects to the database named by --database-url.
func getPool(c *cli.Context) (*pgxpool.Pool, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// getStore connects to the database and returns a store with its closer.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	pool, err := getPool(c)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool, nil), func() { pool.Close() }, nil
}

func requireOwnerFlag(c *cli.Context) (string, error) {
	owner := c.String("owner")
	if owner == "" {
		return "", fmt.Errorf("owner is required (set CHAINSYNC_OWNER env var or use --owner)")
	}
	return owner, nil
}

// chainAddressFlags parses the optional --chain and --address filters.
func chainAddressFlags(c *cli.Context) (*chain.Chain, *string, error) {
	var chainFilter *chain.Chain
	if tag := c.String("chain"); tag != "" {
		parsed, err := chain.Parse(tag)
		if err != nil {
			return nil, nil, err
		}
		chainFilter = &parsed
	}
	var addressFilter *string
	if address := c.String("address"); address != "" {
		if chainFilter == nil {
			return nil, nil, fmt.Errorf("--address requires --chain")
		}
		canonical := chain.CanonicalAddress(*chainFilter, address)
		addressFilter = &canonical
	}
	return chainFilter, addressFilter, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
