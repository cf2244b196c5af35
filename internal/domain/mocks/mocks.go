package mocks

import (
	"context"
	"sync"

	"github.com/user/log-analyzer/internal/domain"
)

// MockChunkSource replays a fixed set of chunks, then reports exhaustion.
type MockChunkSource struct {
	mu      sync.Mutex
	Chunks  []domain.Chunk
	next    int
	Acked   []domain.Chunk
	NextErr error
	AckErr  error
	// FailAfter, when > 0, makes Next fail with NextErr once that many
	// chunks were handed out.
	FailAfter int
	// Block, when set, makes Next wait for ctx cancellation once the chunks
	// run out instead of reporting exhaustion (an idle live stream).
	Block  bool
	closed bool
}

func (m *MockChunkSource) Next(ctx context.Context) (domain.Chunk, error) {
	m.mu.Lock()
	if m.FailAfter > 0 && m.next >= m.FailAfter && m.NextErr != nil {
		err := m.NextErr
		m.mu.Unlock()
		return domain.Chunk{}, err
	}
	if m.next < len(m.Chunks) {
		chunk := m.Chunks[m.next]
		m.next++
		m.mu.Unlock()
		return chunk, nil
	}
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Chunk{}, ctx.Err()
	}
	if m.NextErr != nil {
		return domain.Chunk{}, m.NextErr
	}
	return domain.Chunk{}, domain.ErrPartitionExhausted
}

func (m *MockChunkSource) Ack(ctx context.Context, chunk domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.Acked = append(m.Acked, chunk)
	return nil
}

func (m *MockChunkSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// AckedChunks returns a copy of the chunks acknowledged so far.
func (m *MockChunkSource) AckedChunks() []domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Chunk(nil), m.Acked...)
}

func (m *MockChunkSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockSourceFactory hands out MockChunkSources per partition. Opens counts
// calls so tests can assert respawn behavior.
type MockSourceFactory struct {
	mu      sync.Mutex
	Sources map[int][]*MockChunkSource // consumed head-first per partition
	Opens   []domain.Partition
	OpenErr error
	Count   int
}

func (f *MockSourceFactory) Partitions(count int) ([]domain.Partition, error) {
	n := f.Count
	if n == 0 {
		n = count
	}
	partitions := make([]domain.Partition, n)
	for i := range partitions {
		partitions[i] = domain.Partition{Index: i, Start: 0, End: -1}
	}
	return partitions, nil
}

func (f *MockSourceFactory) Open(ctx context.Context, partition domain.Partition, consumer string) (domain.ChunkSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.Opens = append(f.Opens, partition)
	queue := f.Sources[partition.Index]
	if len(queue) == 0 {
		return &MockChunkSource{}, nil
	}
	src := queue[0]
	f.Sources[partition.Index] = queue[1:]
	return src, nil
}

// OpenedPartitions returns a copy of the partitions passed to Open so far.
func (f *MockSourceFactory) OpenedPartitions() []domain.Partition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Partition(nil), f.Opens...)
}

// MockReporter records reported incidents and can fail a configured number
// of leading attempts.
type MockReporter struct {
	mu        sync.Mutex
	Reported  []*domain.Incident
	ReportErr error
	// FailFirst makes the first N Report calls fail before succeeding.
	FailFirst int
	calls     int
}

func (m *MockReporter) Report(ctx context.Context, incident *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.ReportErr != nil {
		return m.ReportErr
	}
	if m.calls <= m.FailFirst {
		return context.DeadlineExceeded
	}
	m.Reported = append(m.Reported, incident)
	return nil
}

func (m *MockReporter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockReporter) ReportedIncidents() []*domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Incident(nil), m.Reported...)
}

// MockPublisher captures published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (m *MockPublisher) Publish(event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// ByType returns the captured events of one type.
func (m *MockPublisher) ByType(t domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, ev := range m.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
