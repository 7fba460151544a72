package nats

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockPublisher is an in-memory Publisher for tests.
type MockPublisher struct {
	mu             sync.RWMutex
	progressEvents []*SyncProgressEvent
	transferEvents []*TransferEvent
	publishError   error
	closed         bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishProgress records the event and returns any configured error.
func (m *MockPublisher) PublishProgress(ctx context.Context, event *SyncProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.progressEvents = append(m.progressEvents, event)
	return nil
}

// PublishTransfer records the event and returns any configured error.
func (m *MockPublisher) PublishTransfer(ctx context.Context, event *TransferEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.transferEvents = append(m.transferEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ProgressEvents returns a copy of the published progress events.
func (m *MockPublisher) ProgressEvents() []*SyncProgressEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*SyncProgressEvent, len(m.progressEvents))
	copy(events, m.progressEvents)
	return events
}

// ProgressEventsForRun returns the progress events published for one run.
func (m *MockPublisher) ProgressEventsForRun(runID uuid.UUID) []*SyncProgressEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*SyncProgressEvent
	for _, e := range m.progressEvents {
		if e.RunID == runID {
			events = append(events, e)
		}
	}
	return events
}

// TransferEvents returns a copy of the published transfer events.
func (m *MockPublisher) TransferEvents() []*TransferEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransferEvent, len(m.transferEvents))
	copy(events, m.transferEvents)
	return events
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressEvents = nil
	m.transferEvents = nil
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
