package usecase

import (
	"context"
	"errors"
	"sync"

	"AlphaRadar/internal/domain/models"
)

type fakeMetrics struct {
	mu      sync.Mutex
	scans   map[string]int
	errors  map[string]int
	history int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{scans: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordScan(trigger, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[trigger+"/"+result]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordHistorySize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = n
}

func (m *fakeMetrics) RecordAppearances([]string)    {}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) scanCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans[key]
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// memBlobStore is an in-memory BlobStore with injectable failures.
type memBlobStore struct {
	mu      sync.Mutex
	blob    []byte
	has     bool
	loadErr error
	saveErr error
	saves   int
}

func (s *memBlobStore) Load(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	return append([]byte(nil), s.blob...), s.has, nil
}

func (s *memBlobStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.blob = append([]byte(nil), blob...)
	s.has = true
	s.saves++
	return nil
}

func (s *memBlobStore) saved() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.blob...)
}

// fakeSource returns queued results in order, repeating the last one.
type fakeSource struct {
	mu      sync.Mutex
	results []models.FetchResult
	errs    []error
	calls   int
	block   chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context) (models.FetchResult, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.FetchResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if i < len(f.errs) && f.errs[i] != nil {
		return models.FetchResult{}, f.errs[i]
	}
	if len(f.results) == 0 {
		return models.FetchResult{}, errors.New("no result configured")
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func assets(symbols ...string) models.FetchResult {
	out := models.FetchResult{Sources: []models.Source{{Title: "report", URI: "#"}}}
	for _, s := range symbols {
		out.Data = append(out.Data, models.Asset{Symbol: s, Category: models.CategoryHotspot})
	}
	return out
}
