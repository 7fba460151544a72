package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/metrics"
	natspkg "github.com/brojonat/chainsync/service/nats"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	keepaliveInterval = 10 * time.Second
	consumerInactive  = 30 * time.Second
)

// SSEPublisher manages Server-Sent Events connections backed by JetStream.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, js, err := natspkg.Connect(natsURL, "chainsync-sse-publisher")
	if err != nil {
		return nil, err
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// sseStream writes events to one client.
type sseStream struct {
	w       http.ResponseWriter
	metrics *metrics.Metrics
}

func openStream(w http.ResponseWriter, m *metrics.Metrics) *sseStream {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	s := &sseStream{w: w, metrics: m}
	s.flush()
	return s
}

func (s *sseStream) flush() {
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *sseStream) send(event string, data []byte) {
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flush()
	if s.metrics != nil {
		s.metrics.RecordSSEEventSent(event)
	}
}

func (s *sseStream) sendJSON(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.send(event, data)
	return nil
}

func (s *sseStream) keepalive() {
	fmt.Fprintf(s.w, ": keepalive\n\n")
	s.flush()
}

var errStreamDone = errors.New("stream done")

// consume relays messages on subject to handle until the client leaves or
// handle returns errStreamDone.
func (p *SSEPublisher) consume(ctx context.Context, stream *sseStream, subject string, policy jetstream.DeliverPolicy, handle func(data []byte) error) error {
	cons, err := p.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
		FilterSubject:     subject,
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     policy,
		InactiveThreshold: consumerInactive,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	msgChan := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}
	defer cc.Stop()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-keepalive.C:
			stream.keepalive()

		case msg := <-msgChan:
			err := handle(msg.Data())
			msg.Ack()
			if errors.Is(err, errStreamDone) {
				return nil
			}
			if err != nil {
				p.logger.WarnContext(ctx, "failed to relay event", "subject", subject, "error", err)
			}

		case <-cc.Closed():
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// handleStreamSyncRun streams progress for one sync run. Progress already
// published is replayed, and the stream ends with the run's terminal event.
// A run that already finished gets its stored state and the stream closes.
// GET /api/v1/stream/sync/{id}
func handleStreamSyncRun(publisher *SSEPublisher, store Store, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid run id", http.StatusBadRequest)
			return
		}
		run, err := store.GetSyncRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "sync run not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get sync run", "run_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if run.OwnerID != ownerID(r) {
			writeError(w, "sync run not found", http.StatusNotFound)
			return
		}

		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}
		stream := openStream(w, m)
		logger.DebugContext(r.Context(), "SSE client connected", "run_id", id, "remote_addr", r.RemoteAddr)
		defer logger.DebugContext(r.Context(), "SSE client disconnected", "run_id", id, "remote_addr", r.RemoteAddr)

		if run.Status.Terminal() {
			stream.sendJSON("progress", runToProgressEvent(run))
			return
		}

		stream.sendJSON("connected", map[string]interface{}{"run_id": id})

		err = publisher.consume(r.Context(), stream, natspkg.ProgressSubject(id), jetstream.DeliverAllPolicy, func(data []byte) error {
			var event natspkg.SyncProgressEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			if err := stream.sendJSON("progress", event); err != nil {
				return err
			}
			if event.Terminal() {
				return errStreamDone
			}
			return nil
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to stream sync run", "run_id", id, "error", err)
			stream.send("error", []byte(`{"error":"failed to subscribe"}`))
		}
	})
}

// handleStreamTransfers streams transfers imported for one wallet from now on.
// GET /api/v1/stream/transfers/{chain}/{address}
func handleStreamTransfers(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := parseChain(r.PathValue("chain"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(c, address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		owner := ownerID(r)

		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}
		stream := openStream(w, m)
		stream.sendJSON("connected", map[string]interface{}{"chain": c, "wallet": address})

		err = publisher.consume(r.Context(), stream, natspkg.TransferSubject(c, address), jetstream.DeliverNewPolicy, func(data []byte) error {
			var event natspkg.TransferEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			// Another owner may track the same address.
			if event.OwnerID != owner {
				return nil
			}
			return stream.sendJSON("transfer", event)
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to stream transfers", "chain", c, "wallet", address, "error", err)
			stream.send("error", []byte(`{"error":"failed to subscribe"}`))
		}
	})
}

func runToProgressEvent(run *db.SyncRun) natspkg.SyncProgressEvent {
	event := natspkg.SyncProgressEvent{
		RunID:         run.ID,
		OwnerID:       run.OwnerID,
		WalletAddress: run.WalletAddress,
		Chain:         run.Chain,
		Status:        string(run.Status),
		Imported:      run.ImportedCount,
		Total:         run.ImportedCount,
		PublishedAt:   run.StartedAt,
	}
	if run.CompletedAt != nil {
		event.PublishedAt = *run.CompletedAt
	}
	if run.ErrorMessage != nil {
		event.Error = *run.ErrorMessage
	}
	return event
}
