package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainsync/client"
	"github.com/brojonat/chainsync/service/approvals"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/urfave/cli/v2"
)

func approvalCommands() *cli.Command {
	return &cli.Command{
		Name:    "approvals",
		Aliases: []string{"approval"},
		Usage:   "ERC-20 approval commands",
		Subcommands: []*cli.Command{
			approvalListCommand(),
			approvalCheckCommand(),
			approvalRevokeCommand(),
			approvalReapproveCommand(),
			approvalClassifyCommand(),
		},
	}
}

func approvalListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored approvals",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.BoolFlag{Name: "include-revoked", Usage: "Include revoked approvals"},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			items, err := cl.ListApprovals(c.Context, client.ApprovalFilter{
				Chain:          c.String("chain"),
				Address:        c.String("address"),
				IncludeRevoked: c.Bool("include-revoked"),
			})
			if err != nil {
				return fmt.Errorf("failed to list approvals: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, items)
			}
			if len(items) == 0 {
				fmt.Println("No approvals found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHAIN\tTOKEN\tSPENDER\tALLOWANCE\tRISK\tSTATUS")
			for _, a := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					a.ID,
					a.Chain,
					deref(a.TokenSymbol, a.TokenAddress),
					deref(a.SpenderName, a.SpenderAddress),
					formatAllowance(a),
					a.RiskLevel,
					approvalStatus(a),
				)
			}
			w.Flush()
			return nil
		},
	}
}

func approvalCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Read a live allowance and store a snapshot",
		ArgsUsage: "CHAIN WALLET TOKEN SPENDER",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "spender-name", Usage: "Display name for the spender"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 4 {
				return fmt.Errorf("chain, wallet, token and spender addresses are required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			req := client.CheckApprovalRequest{
				Chain:          c.Args().Get(0),
				WalletAddress:  c.Args().Get(1),
				TokenAddress:   c.Args().Get(2),
				SpenderAddress: c.Args().Get(3),
			}
			if name := c.String("spender-name"); name != "" {
				req.SpenderName = &name
			}

			approval, err := cl.CheckApproval(c.Context, req)
			if err != nil {
				return fmt.Errorf("failed to check approval: %w", err)
			}
			if jsonMode(c) {
				return outputJSON(c, approval)
			}
			printApproval(approval)
			return nil
		},
	}
}

func approvalRevokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke",
		Usage:     "Submit a zero-allowance approve for a stored approval",
		ArgsUsage: "APPROVAL_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("approval id is required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			approval, err := cl.RevokeApproval(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to revoke approval: %w", err)
			}
			if jsonMode(c) {
				return outputJSON(c, approval)
			}
			fmt.Printf("✓ Approval revoked\n")
			printApproval(approval)
			return nil
		},
	}
}

func approvalReapproveCommand() *cli.Command {
	return &cli.Command{
		Name:      "reapprove",
		Usage:     "Record a new approval after a revocation",
		ArgsUsage: "APPROVAL_ID",
		Flags: []cli.Flag{
			&cli.TimestampFlag{
				Name:   "approved-at",
				Usage:  "When the new approval was granted (RFC 3339, default now)",
				Layout: time.RFC3339,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("approval id is required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			approval, err := cl.ReapproveApproval(c.Context, c.Args().Get(0), c.Timestamp("approved-at"))
			if err != nil {
				return fmt.Errorf("failed to reapprove: %w", err)
			}
			if jsonMode(c) {
				return outputJSON(c, approval)
			}
			fmt.Printf("✓ Approval reinstated\n")
			printApproval(approval)
			return nil
		},
	}
}

// approvalClassifyCommand runs the risk rules locally, without a server.
func approvalClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Show how a spender and allowance would be classified",
		ArgsUsage: "CHAIN SPENDER [ALLOWANCE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "spender-name", Usage: "Display name for the spender (defaults to the known-spender table)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and spender address are required")
			}
			ch, err := chain.Parse(c.Args().Get(0))
			if err != nil {
				return err
			}
			spender := c.Args().Get(1)

			name := c.String("spender-name")
			known := false
			if name == "" {
				name, known = approvals.SpenderName(ch, spender)
			}
			result := map[string]interface{}{
				"chain":           ch,
				"spender_address": spender,
				"spender_name":    name,
				"known_spender":   known,
				"risk_level":      approvals.Classify(spender, name),
			}
			if c.NArg() > 2 {
				result["is_unlimited"] = approvals.IsUnlimited(c.Args().Get(2))
			}

			if jsonMode(c) {
				return outputJSON(c, result)
			}
			fmt.Printf("Spender: %s\n", spender)
			fmt.Printf("  Name: %s\n", deref(&name, "(unknown)"))
			fmt.Printf("  Risk: %s\n", result["risk_level"])
			if unlimited, ok := result["is_unlimited"]; ok {
				fmt.Printf("  Unlimited: %t\n", unlimited)
			}
			return nil
		},
	}
}

func printApproval(a *client.Approval) {
	fmt.Printf("  ID:        %s\n", a.ID)
	fmt.Printf("  Chain:     %s\n", a.Chain)
	fmt.Printf("  Wallet:    %s\n", a.WalletAddress)
	fmt.Printf("  Token:     %s\n", deref(a.TokenSymbol, a.TokenAddress))
	fmt.Printf("  Spender:   %s\n", deref(a.SpenderName, a.SpenderAddress))
	fmt.Printf("  Allowance: %s\n", formatAllowance(a))
	fmt.Printf("  Risk:      %s\n", a.RiskLevel)
	fmt.Printf("  Status:    %s\n", approvalStatus(a))
	if a.RevokeTxHash != nil {
		fmt.Printf("  Revoke Tx: %s\n", *a.RevokeTxHash)
	}
}

func formatAllowance(a *client.Approval) string {
	if a.IsUnlimited {
		return "unlimited"
	}
	return deref(a.Allowance, "-")
}

func approvalStatus(a *client.Approval) string {
	if a.IsRevoked {
		return "revoked"
	}
	return "active"
}
