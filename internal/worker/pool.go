package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"
)

// AnomalyTask carries one timing-anomaly audit row to be persisted.
type AnomalyTask struct {
	Anomaly models.TimingAnomaly
}

// Pool persists timing-anomaly rows asynchronously so the audit write never
// delays or fails a run submission.
type Pool struct {
	jobs        chan AnomalyTask
	workerCount int
	store       repository.Store
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu           sync.RWMutex
	processed    int64
	failed       int64
	backpressure int64
}

// NewPool creates a new anomaly-persistence pool
func NewPool(workerCount, queueSize int, store repository.Store) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:        make(chan AnomalyTask, queueSize),
		workerCount: workerCount,
		store:       store,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// Start initializes and starts all worker goroutines
func (p *Pool) Start() {
	log.Printf("Starting anomaly pool with %d workers and queue size %d", p.workerCount, cap(p.jobs))

	for i := 1; i <= p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker is the main worker loop that processes jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case task, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processTask(id, task)
		}
	}
}

// processTask persists a single anomaly row with panic recovery.
func (p *Pool) processTask(workerID int, task AnomalyTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker #%d panic recovered: %v (run: %s)", workerID, r, task.Anomaly.RunID)
			p.metrics.incrementFailed()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.InsertAnomaly(ctx, &task.Anomaly); err != nil {
		log.Printf("Worker #%d failed to persist anomaly for run %s: %v", workerID, task.Anomaly.RunID, err)
		p.metrics.incrementFailed()
		return
	}

	p.metrics.incrementProcessed()
}

// Submit attempts to queue a task. Audit rows are droppable: under
// backpressure the row is lost and a warning logged, the submit that
// produced it is unaffected.
func (p *Pool) Submit(task AnomalyTask) error {
	select {
	case p.jobs <- task:
		return nil

	default:
		log.Printf("Backpressure: anomaly queue full, dropping audit row for run %s", task.Anomaly.RunID)
		p.metrics.incrementBackpressure()
		return fmt.Errorf("anomaly pool queue full (backpressure)")
	}
}

// Shutdown drains the queue, waiting up to timeout for workers to finish.
func (p *Pool) Shutdown(timeout time.Duration) error {
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		processed, failed, backpressure := p.metrics.snapshot()
		log.Printf("Anomaly pool drained: processed=%d failed=%d dropped=%d", processed, failed, backpressure)
		return nil

	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (pm *PoolMetrics) snapshot() (processed, failed, backpressure int64) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.processed, pm.failed, pm.backpressure
}

func (pm *PoolMetrics) incrementProcessed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
