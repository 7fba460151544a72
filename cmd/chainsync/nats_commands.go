package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	natspkg "github.com/brojonat/chainsync/service/nats"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand prints sync events straight from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to progress events for a run or transfer events for a wallet",
		ArgsUsage: "RUN_ID | CHAIN ADDRESS",
		Description: `Subscribe to events published to NATS JetStream.

With one argument, streams progress for a sync run (subject sync.{run_id}),
replaying what was already published. With two, streams new transfers for a
wallet (subject transfers.{chain}.{address}).

Examples:
  chainsync nats subscribe 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  chainsync nats subscribe ethereum 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045 --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "chainsync-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject, policy, err := subscribeSubject(c.Args().Slice())
			if err != nil {
				return err
			}

			nc, js, err := natspkg.Connect(c.String("nats-url"), "chainsync-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: policy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(c.Context, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			if !jsonMode(c) {
				fmt.Printf("📡 Subscribing to: %s\n", subject)
				fmt.Printf("   NATS: %s\n", c.String("nats-url"))
				if c.Bool("durable") {
					fmt.Printf("   Consumer: %s (durable)\n", c.String("consumer-name"))
				}
				fmt.Printf("\nWaiting for events... (Ctrl-C to exit)\n\n")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, c, cons)
		},
	}
}

// subscribeSubject maps positional arguments to a subject and the delivery
// policy used for it.
func subscribeSubject(args []string) (string, jetstream.DeliverPolicy, error) {
	switch len(args) {
	case 1:
		runID, err := uuid.Parse(args[0])
		if err != nil {
			return "", 0, fmt.Errorf("invalid run id: %w", err)
		}
		return natspkg.ProgressSubject(runID), jetstream.DeliverAllPolicy, nil
	case 2:
		c, err := chain.Parse(args[0])
		if err != nil {
			return "", 0, err
		}
		return natspkg.TransferSubject(c, args[1]), jetstream.DeliverNewPolicy, nil
	default:
		return "", 0, fmt.Errorf("expected RUN_ID or CHAIN ADDRESS")
	}
}

func streamEvents(ctx context.Context, c *cli.Context, cons jetstream.Consumer) error {
	msgChan := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer cc.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			count++
			done, err := printEvent(c, msg, count)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
			}
			msg.Ack()
			if done {
				return nil
			}

		case <-ctx.Done():
			if !jsonMode(c) {
				fmt.Printf("\n\n✅ Received %d events\n", count)
				fmt.Println("Shutting down...")
			}
			return nil
		}
	}
}

// printEvent prints one message and reports whether it ended a run.
func printEvent(c *cli.Context, msg jetstream.Msg, n int) (bool, error) {
	if strings.HasPrefix(msg.Subject(), "sync.") {
		var event natspkg.SyncProgressEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return false, err
		}
		if jsonMode(c) {
			return event.Terminal(), outputJSON(c, event)
		}
		fmt.Printf("[%s] run %s %-11s imported %d/%d\n",
			event.PublishedAt.Format("15:04:05"), event.RunID, event.Status, event.Imported, event.Total)
		if event.Error != "" {
			fmt.Printf("  error: %s\n", event.Error)
		}
		return event.Terminal(), nil
	}

	var event natspkg.TransferEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return false, err
	}
	if jsonMode(c) {
		return false, outputJSON(c, event)
	}
	t := event.Transfer
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Transfer #%d\n", n)
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Hash:         %s\n", t.Hash)
	fmt.Printf("Wallet:       %s (%s)\n", event.WalletAddress, event.Direction)
	fmt.Printf("From:         %s\n", t.From)
	fmt.Printf("To:           %s\n", deref(t.To, "-"))
	fmt.Printf("Value:        %s %s\n", t.Value, deref(t.Asset, ""))
	fmt.Printf("Category:     %s\n", t.Category)
	fmt.Printf("Block:        %s\n", t.Block)
	fmt.Printf("Published:    %s\n", event.PublishedAt.Format(time.RFC3339))
	fmt.Printf("\n")
	return false, nil
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the SYNC JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  chainsync nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, js, err := natspkg.Connect(c.String("nats-url"), "chainsync-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if jsonMode(c) {
				return outputJSON(c, info)
			}
			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("─────────────────────────────────────────────────────\n")
			fmt.Printf("Description:  %s\n", info.Config.Description)
			fmt.Printf("Subjects:     %v\n", info.Config.Subjects)
			fmt.Printf("Messages:     %d\n", info.State.Msgs)
			fmt.Printf("Bytes:        %d\n", info.State.Bytes)
			fmt.Printf("First Seq:    %d\n", info.State.FirstSeq)
			fmt.Printf("Last Seq:     %d\n", info.State.LastSeq)
			fmt.Printf("Consumers:    %d\n", info.State.Consumers)
			fmt.Printf("Max Age:      %s\n", info.Config.MaxAge)
			fmt.Printf("Storage:      %s\n", info.Config.Storage)
			fmt.Printf("\n")
			return nil
		},
	}
}
