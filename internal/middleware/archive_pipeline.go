package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaRadar/internal/domain/models"
	domrepo "AlphaRadar/internal/domain/repository"
	applogger "AlphaRadar/pkg/logger"
)

const (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 2 * time.Second
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, rec models.ScanRecord) error
}

// ArchivePipeline sits between the scheduler and the archive backend. It
// validates records, forwards them and keeps failed ones in a bounded
// buffer that a background loop retries with exponential backoff.
type ArchivePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *applogger.Logger
	bufSize int
	bufCh   chan models.ScanRecord
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*ArchivePipeline)

// WithBufferSize sets how many records are kept while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ArchivePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *ArchivePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewArchivePipeline creates a new pipeline.
func NewArchivePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ArchivePipeline {
	p := &ArchivePipeline{
		proc:    proc,
		metrics: metrics,
		log:     applogger.Nop(),
		bufSize: 256,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.ScanRecord, p.bufSize)
	return p
}

// Start launches background flushing of buffered records.
func (p *ArchivePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.flush(ctx)
}

func (p *ArchivePipeline) flush(ctx context.Context) {
	defer p.wg.Done()

	backoff := minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case rec := <-p.bufCh:
			if err := p.proc.Process(ctx, rec); err == nil {
				backoff = minBackoff
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			// requeue if space; drop otherwise
			select {
			case p.bufCh <- rec:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
				p.log.Warn("archive buffer full, dropping scan", applogger.Int64("timestamp", rec.Timestamp))
			}
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
		}
	}
}

// Stop stops the background flushing and waits for it to exit. Records
// still buffered are reported and discarded.
func (p *ArchivePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	if n := len(p.bufCh); n > 0 {
		p.log.Warn("archive pipeline stopped with pending scans", applogger.Int("pending", n))
	}
}

// Archive validates rec and forwards it downstream, buffering it when
// downstream fails. The returned error reports the downstream failure even
// when the record was buffered for retry.
func (p *ArchivePipeline) Archive(ctx context.Context, rec models.ScanRecord) error {
	start := time.Now()
	if err := validateRecord(rec); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	if err := p.proc.Process(ctx, rec); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- rec:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Pending returns the number of buffered records.
func (p *ArchivePipeline) Pending() int {
	return len(p.bufCh)
}

func validateRecord(rec models.ScanRecord) error {
	if rec.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if len(rec.Symbols) == 0 {
		return fmt.Errorf("symbols empty")
	}
	for _, s := range rec.Symbols {
		if s == "" {
			return fmt.Errorf("symbol empty")
		}
	}
	return nil
}
