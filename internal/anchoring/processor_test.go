package anchoring_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/anchoring"
	"github.com/norruva/dpp-service/internal/audit"
	"github.com/norruva/dpp-service/internal/product"
)

func TestAnchoring(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Anchoring Suite")
}

// Mock repository for testing
type mockProductRepository struct {
	mu       sync.Mutex
	products map[string]*product.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[string]*product.Product)}
}

func (m *mockProductRepository) Create(p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.products[p.ID] = &clone
	return nil
}

func (m *mockProductRepository) GetByID(id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) Search(f product.Filters) ([]*product.Product, error) {
	return nil, nil
}

func (m *mockProductRepository) FindMinting() ([]*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*product.Product
	for _, p := range m.products {
		if p.IsMinting {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockProductRepository) Update(p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.products[p.ID]
	if !ok {
		return product.ErrProductNotFound
	}
	if stored.Version != p.Version {
		return product.ErrVersionConflict
	}
	clone := *p
	clone.Version = p.Version + 1
	m.products[p.ID] = &clone
	return nil
}

func (m *mockProductRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) stored(id string) *product.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	clone := *p
	return &clone
}

// mockOracle fails the first failCredential credential calls and the first
// failAnchor anchor calls, then succeeds.
type mockOracle struct {
	mu              sync.Mutex
	credentialCalls int
	anchorCalls     int
	failCredential  int
	failAnchor      int
}

func (m *mockOracle) CreateVerifiableCredential(_ context.Context, p *product.Product) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentialCalls++
	if m.credentialCalls <= m.failCredential {
		return "", errors.New("oracle unavailable")
	}
	return "vc-for-" + p.ID, nil
}

func (m *mockOracle) AnchorToPolygon(_ context.Context, productID string) (*product.BlockchainProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchorCalls++
	if m.anchorCalls <= m.failAnchor {
		return nil, errors.New("chain congested")
	}
	return &product.BlockchainProof{
		TxHash:      "0xtx-" + productID,
		ExplorerURL: "https://polygonscan.example/tx/0xtx-" + productID,
		Chain:       "polygon",
		AnchoredAt:  time.Now(),
	}, nil
}

func (m *mockOracle) calls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credentialCalls, m.anchorCalls
}

type mockAuditRepository struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (m *mockAuditRepository) Append(entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) List(limit, offset int) ([]*audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Entry(nil), m.entries...), nil
}

func (m *mockAuditRepository) ListByEntity(entityID string, limit, offset int) ([]*audit.Entry, error) {
	return m.List(0, 0)
}

func (m *mockAuditRepository) countByAction(action audit.Action) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

var _ = Describe("Processor", func() {
	var (
		processor *anchoring.Processor
		repo      *mockProductRepository
		oracle    *mockOracle
		auditRepo *mockAuditRepository
	)

	newMintingProduct := func(id string) *product.Product {
		p := &product.Product{
			ID:                 id,
			Name:               "Solar Panel X1",
			CompanyID:          "acme",
			Status:             product.StatusDraft,
			VerificationStatus: product.VerificationPending,
			EndOfLifeStatus:    product.EndOfLifeActive,
			IsMinting:          true,
			Version:            1,
		}
		Expect(repo.Create(p)).To(Succeed())
		return p
	}

	BeforeEach(func() {
		repo = newMockProductRepository()
		oracle = &mockOracle{}
		auditRepo = &mockAuditRepository{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		processor = anchoring.NewProcessor(internal.AnchoringConfig{
			MaxWorkers:   2,
			JobQueueSize: 10,
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
		}, repo, oracle, audit.NewService(auditRepo, logger), nil, logger)
		DeferCleanup(processor.Shutdown)
	})

	Context("when the oracle succeeds", func() {
		It("should verify and publish the passport in one write", func() {
			p := newMintingProduct("prod-1")

			Expect(processor.Enqueue(p.ID, "u-auditor")).To(Succeed())

			Eventually(func() product.VerificationStatus {
				return repo.stored(p.ID).VerificationStatus
			}, time.Second, 5*time.Millisecond).Should(Equal(product.VerificationVerified))

			fresh := repo.stored(p.ID)
			Expect(fresh.Status).To(Equal(product.StatusPublished))
			Expect(fresh.IsMinting).To(BeFalse())
			Expect(fresh.VerifiableCredential).To(Equal("vc-for-prod-1"))
			Expect(fresh.BlockchainProof).ToNot(BeNil())
			Expect(fresh.BlockchainProof.TxHash).To(Equal("0xtx-prod-1"))
			Expect(fresh.LastVerificationDate).ToNot(BeNil())
			Expect(auditRepo.countByAction(audit.ActionProductAnchored)).To(Equal(1))
		})
	})

	Context("when a previous process left passports mid-saga", func() {
		It("should re-enqueue minting rows on recovery", func() {
			stuck := newMintingProduct("prod-stuck")
			settled := newMintingProduct("prod-settled")
			fresh := repo.stored(settled.ID)
			fresh.IsMinting = false
			Expect(repo.Update(fresh)).To(Succeed())

			Expect(processor.Recover()).To(Succeed())

			Eventually(func() product.VerificationStatus {
				return repo.stored(stuck.ID).VerificationStatus
			}, time.Second, 5*time.Millisecond).Should(Equal(product.VerificationVerified))

			Expect(repo.stored(settled.ID).VerificationStatus).To(Equal(product.VerificationPending))
			Expect(auditRepo.countByAction(audit.ActionProductAnchored)).To(Equal(1))
		})
	})

	Context("when the oracle fails transiently", func() {
		It("should retry the credential and anchor pair as a unit", func() {
			oracle.failCredential = 1
			p := newMintingProduct("prod-2")

			Expect(processor.Enqueue(p.ID, "u-auditor")).To(Succeed())

			Eventually(func() product.VerificationStatus {
				return repo.stored(p.ID).VerificationStatus
			}, time.Second, 5*time.Millisecond).Should(Equal(product.VerificationVerified))

			credentialCalls, anchorCalls := oracle.calls()
			Expect(credentialCalls).To(Equal(2))
			Expect(anchorCalls).To(Equal(1))
		})
	})

	Context("when the oracle keeps failing", func() {
		It("should land in AnchoringFailed with minting cleared", func() {
			oracle.failAnchor = 100
			p := newMintingProduct("prod-3")

			Expect(processor.Enqueue(p.ID, "u-auditor")).To(Succeed())

			Eventually(func() product.VerificationStatus {
				return repo.stored(p.ID).VerificationStatus
			}, time.Second, 5*time.Millisecond).Should(Equal(product.VerificationAnchoringFailed))

			fresh := repo.stored(p.ID)
			Expect(fresh.IsMinting).To(BeFalse())
			Expect(fresh.Status).To(Equal(product.StatusDraft))
			Expect(fresh.AnchorRetryCount).To(Equal(2))
			Expect(auditRepo.countByAction(audit.ActionAnchoringFailed)).To(Equal(1))
		})
	})

	Context("when the job is stale", func() {
		It("should skip a passport that is no longer minting", func() {
			p := newMintingProduct("prod-4")
			stored := repo.stored(p.ID)
			stored.IsMinting = false
			Expect(repo.Update(stored)).To(Succeed())

			Expect(processor.Enqueue(p.ID, "u-auditor")).To(Succeed())

			Consistently(func() product.VerificationStatus {
				return repo.stored(p.ID).VerificationStatus
			}, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(product.VerificationPending))
			Expect(auditRepo.countByAction(audit.ActionProductAnchored)).To(BeZero())
		})
	})

	Context("when the queue is full", func() {
		It("should reject instead of blocking the caller", func() {
			tiny := anchoring.NewProcessor(internal.AnchoringConfig{
				MaxWorkers:   1,
				JobQueueSize: 1,
				MaxRetries:   1,
				RetryBackoff: 50 * time.Millisecond,
			}, repo, &mockOracle{failCredential: 100}, audit.NewService(auditRepo, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))), nil, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
			DeferCleanup(tiny.Shutdown)

			for i := 0; i < 20; i++ {
				newMintingProduct("flood")
			}

			var rejected bool
			for i := 0; i < 20; i++ {
				if err := tiny.Enqueue("flood", "u-auditor"); err != nil {
					rejected = true
					break
				}
			}
			Expect(rejected).To(BeTrue())
		})
	})
})
