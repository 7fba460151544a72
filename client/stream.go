package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProgressEvent is a sync run progress update.
type ProgressEvent struct {
	RunID         string    `json:"run_id"`
	OwnerID       string    `json:"owner_id"`
	WalletAddress string    `json:"wallet_address"`
	Chain         string    `json:"chain"`
	Status        string    `json:"status"`
	Imported      int       `json:"imported"`
	Total         int       `json:"total"`
	Error         string    `json:"error,omitempty"`
	PublishedAt   time.Time `json:"published_at"`
}

// Terminal reports whether the event ends its run.
func (e *ProgressEvent) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

// TransferEvent is a transfer imported for a watched wallet.
type TransferEvent struct {
	RunID         string    `json:"run_id"`
	OwnerID       string    `json:"owner_id"`
	WalletAddress string    `json:"wallet_address"`
	Direction     string    `json:"direction"`
	Transfer      Transfer  `json:"transfer"`
	PublishedAt   time.Time `json:"published_at"`
}

// Event is one raw server-sent event.
type Event struct {
	Name string
	Data string
}

// ErrStopStream can be returned by a stream callback to end the stream
// without an error.
var ErrStopStream = errors.New("stop stream")

// StreamSync follows a run's progress until its terminal event. Progress
// already published is replayed first.
func (c *Client) StreamSync(ctx context.Context, runID string, fn func(ProgressEvent) error) error {
	return c.stream(ctx, "/api/v1/stream/sync/"+url.PathEscape(runID), func(ev Event) error {
		if ev.Name != "progress" {
			return nil
		}
		var p ProgressEvent
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return fmt.Errorf("failed to decode progress event: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
		if p.Terminal() {
			return ErrStopStream
		}
		return nil
	})
}

// StreamTransfers delivers transfers imported for a wallet until ctx is
// cancelled or fn returns an error.
func (c *Client) StreamTransfers(ctx context.Context, chain, address string, fn func(TransferEvent) error) error {
	path := fmt.Sprintf("/api/v1/stream/transfers/%s/%s", url.PathEscape(chain), url.PathEscape(address))
	return c.stream(ctx, path, func(ev Event) error {
		if ev.Name != "transfer" {
			return nil
		}
		var t TransferEvent
		if err := json.Unmarshal([]byte(ev.Data), &t); err != nil {
			return fmt.Errorf("failed to decode transfer event: %w", err)
		}
		return fn(t)
	})
}

func (c *Client) stream(ctx context.Context, path string, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(OwnerHeader, c.ownerID)

	// No timeout for streaming
	httpClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	err = ReadEvents(resp.Body, func(ev Event) error {
		if ev.Name == "error" {
			var errInfo struct {
				Error string `json:"error"`
			}
			json.Unmarshal([]byte(ev.Data), &errInfo)
			return fmt.Errorf("server error: %s", errInfo.Error)
		}
		return fn(ev)
	})
	if errors.Is(err, ErrStopStream) {
		return nil
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// ReadEvents parses a text/event-stream body, calling fn for each complete
// event. Comment lines are skipped.
func ReadEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var current Event
	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if current.Name != "" || len(data) > 0 {
				current.Data = strings.Join(data, "\n")
				if current.Name == "" {
					current.Name = "message"
				}
				if err := fn(current); err != nil {
					return err
				}
			}
			current = Event{}
			data = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
