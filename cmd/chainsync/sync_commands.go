package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainsync/client"
	"github.com/urfave/cli/v2"
)

func syncCommands() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Transfer history sync commands",
		Subcommands: []*cli.Command{
			syncStartCommand(),
			syncGetCommand(),
			syncListCommand(),
			syncStreamCommand(),
		},
	}
}

func syncStartCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Aliases:   []string{"run"},
		Usage:     "Start a sync run for a wallet",
		ArgsUsage: "CHAIN ADDRESS",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "from-block", Usage: "First block to include (EVM only)"},
			&cli.Uint64Flag{Name: "to-block", Usage: "Last block to include (EVM only)"},
			&cli.IntFlag{Name: "max-count", Usage: "Maximum transfers per direction (0 for no limit)"},
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Block until the run finishes and print the result"},
			&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "Print progress events until the run finishes"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: 10 * time.Minute, Usage: "How long to wait with --wait or --follow"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("chain and wallet address are required")
			}
			if c.Bool("wait") && c.Bool("follow") {
				return fmt.Errorf("--wait and --follow are mutually exclusive")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			req := client.SyncRequest{
				Chain:    c.Args().Get(0),
				Address:  c.Args().Get(1),
				MaxCount: c.Int("max-count"),
			}
			if c.IsSet("from-block") {
				v := c.Uint64("from-block")
				req.FromBlock = &v
			}
			if c.IsSet("to-block") {
				v := c.Uint64("to-block")
				req.ToBlock = &v
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if c.Bool("wait") {
				result, err := cl.Sync(ctx, req)
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}
				if jsonMode(c) {
					return outputJSON(c, result)
				}
				printSyncResult(result)
				return nil
			}

			runID, err := cl.StartSync(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to start sync: %w", err)
			}

			if !c.Bool("follow") {
				if jsonMode(c) {
					return outputJSON(c, map[string]string{"run_id": runID, "status": "pending"})
				}
				fmt.Printf("✓ Sync started\n")
				fmt.Printf("  Run ID: %s\n", runID)
				return nil
			}

			if !jsonMode(c) {
				fmt.Fprintf(os.Stderr, "Following sync run %s...\n", runID)
			}
			return followRun(ctx, c, cl, runID)
		},
	}
}

// followRun prints progress events for a run until it finishes. Without an
// event stream on the server it falls back to polling.
func followRun(ctx context.Context, c *cli.Context, cl *client.Client, runID string) error {
	var last *client.ProgressEvent
	err := cl.StreamSync(ctx, runID, func(ev client.ProgressEvent) error {
		last = &ev
		return printProgress(c, &ev)
	})

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound && last == nil {
		run, err := cl.WaitForRun(ctx, runID, time.Second)
		if err != nil {
			return fmt.Errorf("failed to wait for run: %w", err)
		}
		if jsonMode(c) {
			return outputJSON(c, run)
		}
		printSyncRun(run)
		return runError(run.Status, run.ErrorMessage)
	}
	if err != nil {
		return fmt.Errorf("failed to stream sync progress: %w", err)
	}
	if last == nil {
		return nil
	}
	var msg *string
	if last.Error != "" {
		msg = &last.Error
	}
	return runError(last.Status, msg)
}

func printProgress(c *cli.Context, ev *client.ProgressEvent) error {
	if jsonMode(c) {
		return outputJSON(c, ev)
	}
	line := fmt.Sprintf("[%s] %-11s imported %d/%d", ev.PublishedAt.Format("15:04:05"), ev.Status, ev.Imported, ev.Total)
	if ev.Error != "" {
		line += " error: " + ev.Error
	}
	fmt.Println(line)
	return nil
}

func runError(status string, message *string) error {
	if status != "failed" {
		return nil
	}
	return fmt.Errorf("sync run failed: %s", deref(message, "unknown error"))
}

func syncGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"show"},
		Usage:     "Show a sync run",
		ArgsUsage: "RUN_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("run id is required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			run, err := cl.GetSyncRun(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get sync run: %w", err)
			}
			if jsonMode(c) {
				return outputJSON(c, run)
			}
			printSyncRun(run)
			return nil
		},
	}
}

func syncListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List sync runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chain", Usage: "Filter by chain"},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Filter by wallet address (requires --chain)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of runs"},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			runs, err := cl.ListSyncRuns(c.Context, client.RunFilter{
				Chain:   c.String("chain"),
				Address: c.String("address"),
				Limit:   c.Int("limit"),
			})
			if err != nil {
				return fmt.Errorf("failed to list sync runs: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, runs)
			}
			if len(runs) == 0 {
				fmt.Println("No sync runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHAIN\tWALLET\tSTATUS\tIMPORTED\tSTARTED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					run.ID,
					run.Chain,
					run.WalletAddress,
					run.Status,
					run.ImportedCount,
					run.StartedAt.Format(time.RFC3339),
				)
			}
			w.Flush()
			return nil
		},
	}
}

func syncStreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Aliases:   []string{"follow"},
		Usage:     "Follow the progress of an existing sync run",
		ArgsUsage: "RUN_ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: 10 * time.Minute, Usage: "How long to follow"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("run id is required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()
			return followRun(ctx, c, cl, c.Args().Get(0))
		},
	}
}

func printSyncResult(r *client.SyncResult) {
	if r.Status == "completed" {
		fmt.Printf("✓ Sync completed\n")
	} else {
		fmt.Printf("✗ Sync %s\n", r.Status)
	}
	fmt.Printf("  Run ID:     %s\n", r.RunID)
	fmt.Printf("  Imported:   %d\n", r.Imported)
	fmt.Printf("  Inserted:   %d\n", r.Inserted)
	fmt.Printf("  Duplicates: %d\n", r.Duplicates)
	fmt.Printf("  Failed:     %d\n", r.Failed)
	if r.Error != "" {
		fmt.Printf("  Error:      %s\n", r.Error)
	}
}

func printSyncRun(run *client.SyncRun) {
	fmt.Printf("Sync run %s\n", run.ID)
	fmt.Printf("  Chain:     %s\n", run.Chain)
	fmt.Printf("  Wallet:    %s\n", run.WalletAddress)
	fmt.Printf("  Status:    %s\n", run.Status)
	fmt.Printf("  Imported:  %d\n", run.ImportedCount)
	fmt.Printf("  Started:   %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	if run.FromBlock != nil || run.ToBlock != nil {
		fmt.Printf("  Blocks:    %s..%s\n", formatBlock(run.FromBlock), formatBlock(run.ToBlock))
	}
	if run.ErrorMessage != nil {
		fmt.Printf("  Error:     %s\n", *run.ErrorMessage)
	}
}

func formatBlock(b *uint64) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%d", *b)
}
