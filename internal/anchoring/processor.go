package anchoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/audit"
	"github.com/norruva/dpp-service/internal/core/events"
	"github.com/norruva/dpp-service/internal/product"
)

// AnchorJob is one approved passport waiting for its credential and on-chain
// anchor.
type AnchorJob struct {
	ProductID  string
	ActorID    string
	EnqueuedAt time.Time
}

// OracleAPI is the slice of the oracle client the saga needs.
type OracleAPI interface {
	CreateVerifiableCredential(ctx context.Context, p *product.Product) (string, error)
	AnchorToPolygon(ctx context.Context, productID string) (*product.BlockchainProof, error)
}

type Worker struct {
	ID         int
	WorkerPool chan chan AnchorJob
	JobChannel chan AnchorJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan AnchorJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan AnchorJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(AnchorJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing anchor job", "worker_id", w.ID, "product_id", job.ProductID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("anchor worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Processor runs the anchoring saga off a bounded worker pool. Each job
// issues a verifiable credential and anchors the passport hash; on success
// the passport flips to Verified/Published in one write, on exhausted retries
// it lands in the AnchoringFailed terminal state. Either way isMinting is
// cleared, so no passport ever dangles mid-saga.
type Processor struct {
	repo    product.Repository
	oracle  OracleAPI
	auditor *audit.Service
	bus     *events.EventBus
	logger  *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	jobQueue   chan AnchorJob
	workerPool chan chan AnchorJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewProcessor(
	cfg internal.AnchoringConfig,
	repo product.Repository,
	oracle OracleAPI,
	auditor *audit.Service,
	bus *events.EventBus,
	logger *slog.Logger,
) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	jobQueueSize := cfg.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 2 * time.Second
	}

	p := &Processor{
		repo:         repo,
		oracle:       oracle,
		auditor:      auditor,
		bus:          bus,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		maxWorkers:   maxWorkers,
		jobQueue:     make(chan AnchorJob, jobQueueSize),
		workerPool:   make(chan chan AnchorJob, maxWorkers),
		ctx:          ctx,
		cancel:       cancel,
	}

	p.startWorkerPool()
	return p
}

func (p *Processor) startWorkerPool() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.processAnchorJob)
		}

		go p.dispatch()

		p.logger.Info("anchoring worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Processor) dispatch() {
	p.wg.Add(1)
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("anchor dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("anchor dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("anchor dispatcher shutting down")
			return
		}
	}
}

func (p *Processor) Shutdown() {
	p.logger.Info("shutting down anchoring processor")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("anchoring processor shutdown complete")
}

// Enqueue implements product.Anchorer. The queue is bounded; a full queue
// rejects rather than blocks the approval request.
func (p *Processor) Enqueue(productID, actorID string) error {
	job := AnchorJob{ProductID: productID, ActorID: actorID, EnqueuedAt: time.Now()}

	select {
	case p.jobQueue <- job:
		p.logger.Info("anchor job queued",
			"product_id", productID,
			"queue_length", len(p.jobQueue))
		return nil
	default:
		return fmt.Errorf("anchoring queue full, capacity %d", cap(p.jobQueue))
	}
}

// Recover re-enqueues passports a previous process left mid-saga, so a
// standalone worker picks up approvals made before it started. Entries that
// finished in the meantime are filtered again at processing time.
func (p *Processor) Recover() error {
	products, err := p.repo.FindMinting()
	if err != nil {
		return fmt.Errorf("load minting passports: %w", err)
	}
	for _, prod := range products {
		if err := p.Enqueue(prod.ID, ""); err != nil {
			p.logger.Error("recovery enqueue failed", "product_id", prod.ID, "error", err)
		}
	}
	if len(products) > 0 {
		p.logger.Info("re-enqueued passports left mid-anchoring", "count", len(products))
	}
	return nil
}

func (p *Processor) processAnchorJob(job AnchorJob) {
	prod, err := p.repo.GetByID(job.ProductID)
	if err != nil {
		p.logger.Error("anchor job dropped, product not loadable",
			"product_id", job.ProductID, "error", err)
		return
	}
	if !prod.IsMinting {
		// Stale job: the passport was rejected, resolved or re-approved since.
		p.logger.Warn("anchor job skipped, product not minting", "product_id", job.ProductID)
		return
	}

	credential, proof, attempts, err := p.runSaga(prod)
	if err != nil {
		p.failAnchoring(prod, job, attempts, err)
		return
	}
	p.completeAnchoring(prod, job, credential, proof)
}

// runSaga drives the two oracle calls with bounded exponential backoff.
// Both calls must succeed within one attempt budget; a credential without an
// anchor is worthless, so the pair is retried as a unit.
func (p *Processor) runSaga(prod *product.Product) (string, *product.BlockchainProof, int, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.retryBackoff * time.Duration(1<<(attempt-1))
			p.logger.Warn("anchoring attempt failed, retrying",
				"product_id", prod.ID,
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr)

			select {
			case <-time.After(backoff):
			case <-p.ctx.Done():
				return "", nil, attempt, fmt.Errorf("anchoring aborted by shutdown: %w", p.ctx.Err())
			}
		}

		credential, err := p.oracle.CreateVerifiableCredential(p.ctx, prod)
		if err != nil {
			lastErr = fmt.Errorf("create credential: %w", err)
			continue
		}

		proof, err := p.oracle.AnchorToPolygon(p.ctx, prod.ID)
		if err != nil {
			lastErr = fmt.Errorf("anchor to polygon: %w", err)
			continue
		}

		return credential, proof, attempt, nil
	}

	return "", nil, p.maxRetries, lastErr
}

func (p *Processor) completeAnchoring(prod *product.Product, job AnchorJob, credential string, proof *product.BlockchainProof) {
	err := p.persist(prod.ID, func(fresh *product.Product) bool {
		if !fresh.IsMinting {
			return false
		}
		fresh.CompleteAnchoring(credential, *proof)
		return true
	})
	if err != nil {
		p.logger.Error("failed to persist anchoring result", "product_id", prod.ID, "error", err)
		return
	}

	p.auditor.Log(audit.ActionProductAnchored, prod.ID,
		fmt.Sprintf("passport anchored on %s, tx %s", proof.Chain, proof.TxHash), job.ActorID)
	p.publish(events.NewPassportEvent(events.EventTypePassportAnchored, prod.ID, prod.CompanyID, prod.Name, job.ActorID, ""))

	p.logger.Info("passport anchored and published",
		"product_id", prod.ID,
		"tx_hash", proof.TxHash,
		"queued_for", time.Since(job.EnqueuedAt))
}

func (p *Processor) failAnchoring(prod *product.Product, job AnchorJob, attempts int, cause error) {
	err := p.persist(prod.ID, func(fresh *product.Product) bool {
		if !fresh.IsMinting {
			return false
		}
		fresh.FailAnchoring(attempts)
		return true
	})
	if err != nil {
		p.logger.Error("failed to persist anchoring failure", "product_id", prod.ID, "error", err)
		return
	}

	p.auditor.Log(audit.ActionAnchoringFailed, prod.ID,
		fmt.Sprintf("anchoring failed after %d retries: %v", attempts, cause), job.ActorID)
	p.publish(events.NewPassportEvent(events.EventTypeAnchoringFailed, prod.ID, prod.CompanyID, prod.Name, job.ActorID, cause.Error()))

	p.logger.Error("anchoring saga exhausted retries",
		"product_id", prod.ID,
		"attempts", attempts,
		"error", cause)
}

// persist reloads and reapplies the mutation on version conflicts, so the
// saga outcome always lands even when reviewers touch the row concurrently.
// mutate returns false to abort when the fresh row is no longer minting.
func (p *Processor) persist(productID string, mutate func(*product.Product) bool) error {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fresh, err := p.repo.GetByID(productID)
		if err != nil {
			return err
		}
		if !mutate(fresh) {
			p.logger.Warn("anchoring outcome discarded, product left minting state", "product_id", productID)
			return nil
		}
		if err := p.repo.Update(fresh); err != nil {
			if errors.Is(err, product.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func (p *Processor) publish(event *events.PassportEvent) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(context.Background(), event); err != nil {
		p.logger.Error("event publish failed", "event_type", event.EventType(), "error", err)
	}
}
