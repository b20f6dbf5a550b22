package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/audit"
	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/core/events"
)

// CircularityCreditsPerRecycle is minted to the recycler on each recycle.
const CircularityCreditsPerRecycle = 10

type Repository interface {
	Create(p *Product) error
	GetByID(id string) (*Product, error)
	Search(f Filters) ([]*Product, error)
	FindMinting() ([]*Product, error)
	Update(p *Product) error
	Delete(id string) error
}

// UserDirectory is the slice of the auth store the workflow engine needs.
type UserDirectory interface {
	GetUserByID(id string) (*auth.User, error)
	AddCircularityCredits(userID string, credits int) error
}

// Oracle generates and verifies zero-knowledge compliance proofs.
type Oracle interface {
	GenerateComplianceProof(ctx context.Context, p *Product) (*ZKProof, error)
	VerifyComplianceProof(ctx context.Context, proof string) (bool, error)
}

// Anchorer accepts anchoring jobs for asynchronous processing.
type Anchorer interface {
	Enqueue(productID, actorID string) error
}

// PassportCache caches published passports for the public endpoint. A nil
// implementation is valid; the service treats cache errors as misses.
type PassportCache interface {
	GetPassport(ctx context.Context, id string) (*Product, error)
	SetPassport(ctx context.Context, p *Product) error
	InvalidatePassport(ctx context.Context, id string) error
}

// Service is the passport workflow engine. Every mutating operation follows
// the same shape: load actor, load product, check permission, validate the
// transition, persist, then audit and publish events.
type Service struct {
	repo     Repository
	users    UserDirectory
	oracle   Oracle
	anchorer Anchorer
	cache    PassportCache
	auditor  *audit.Service
	bus      *events.EventBus
	logger   *slog.Logger
}

func NewService(
	repo Repository,
	users UserDirectory,
	oracle Oracle,
	anchorer Anchorer,
	cache PassportCache,
	auditor *audit.Service,
	bus *events.EventBus,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		oracle:   oracle,
		anchorer: anchorer,
		cache:    cache,
		auditor:  auditor,
		bus:      bus,
		logger:   logger,
	}
}

var errNotFound = internal.NewNotFoundError("product not found", internal.ErrCodeProductNotFound)

func (s *Service) loadActor(userID string) (*auth.User, error) {
	actor, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, internal.NewUnauthorizedError("unknown user", internal.ErrCodeUserNotFound).WithCause(err)
	}
	return actor, nil
}

func (s *Service) loadProduct(id string) (*Product, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, errNotFound
		}
		return nil, internal.NewInternalError("failed to load product", err)
	}
	return p, nil
}

func (s *Service) update(p *Product) error {
	if err := s.repo.Update(p); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return internal.NewConflictError("product was modified concurrently, retry with fresh data", internal.ErrCodeVersionConflict)
		}
		return internal.NewInternalError("failed to update product", err)
	}
	s.invalidateCache(p.ID)
	return nil
}

func (s *Service) invalidateCache(productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePassport(context.Background(), productID); err != nil {
		s.logger.Warn("passport cache invalidation failed", "product_id", productID, "error", err)
	}
}

func (s *Service) publish(event *events.PassportEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), event); err != nil {
		s.logger.Error("event publish failed", "event_type", event.EventType(), "error", err)
	}
}

// canView implements the visibility rule: published passports are public,
// everything else requires a global role or the owning company.
func canView(u *auth.User, p *Product) bool {
	if p.Status == StatusPublished {
		return true
	}
	if u == nil {
		return false
	}
	return u.HasGlobalRole() || u.CompanyID == p.CompanyID
}

// ----------------- CRUD -----------------

// SaveProduct creates when productID is empty, updates otherwise.
func (s *Service) SaveProduct(dto ProductDTO, productID, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}

	if productID == "" {
		return s.createProduct(dto, actor)
	}
	return s.updateProduct(dto, productID, actor)
}

func (s *Service) createProduct(dto ProductDTO, actor *auth.User) (*Product, error) {
	if err := auth.CheckPermission(actor, auth.ActionProductCreate, nil); err != nil {
		return nil, err
	}

	companyID := actor.CompanyID
	if actor.IsAdmin() && dto.CompanyID != "" {
		companyID = dto.CompanyID
	}

	now := time.Now()
	p := &Product{
		ID:                 uuid.New().String(),
		CompanyID:          companyID,
		Status:             StatusDraft,
		VerificationStatus: VerificationNotSubmitted,
		EndOfLifeStatus:    EndOfLifeActive,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
		LastUpdated:        now,
	}
	applyDTO(p, dto)

	if err := s.repo.Create(p); err != nil {
		return nil, internal.NewInternalError("failed to create product", err)
	}

	s.auditor.Log(audit.ActionProductCreated, p.ID, fmt.Sprintf("created product %q", p.Name), actor.ID)
	s.logger.Info("product created", "product_id", p.ID, "company_id", p.CompanyID, "actor_id", actor.ID)
	return p, nil
}

func (s *Service) updateProduct(dto ProductDTO, productID string, actor *auth.User) (*Product, error) {
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductEdit, p); err != nil {
		return nil, err
	}

	applyDTO(p, dto)
	p.touch()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionProductUpdated, p.ID, fmt.Sprintf("updated product %q", p.Name), actor.ID)
	return p, nil
}

func applyDTO(p *Product, dto ProductDTO) {
	p.Name = dto.Name
	p.Description = dto.Description
	p.Category = dto.Category
	p.GTIN = dto.GTIN
	if dto.SupplierName != "" {
		p.SupplierName = dto.SupplierName
	}
	if dto.Images != nil {
		p.Images = dto.Images
	}
	if dto.Materials != nil {
		p.Materials = dto.Materials
	}
	if dto.Certifications != nil {
		p.Certifications = dto.Certifications
	}
	if dto.Manufacturing != nil {
		p.Manufacturing = *dto.Manufacturing
	}
	if dto.Packaging != nil {
		p.Packaging = *dto.Packaging
	}
	if dto.Lifecycle != nil {
		p.Lifecycle = *dto.Lifecycle
	}
	if dto.Battery != nil {
		p.Battery = *dto.Battery
	}
	if dto.Compliance != nil {
		p.Compliance = dto.Compliance
	}
}

func (s *Service) DeleteProduct(productID, actorID string) error {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductDelete, p); err != nil {
		return err
	}

	if err := s.repo.Delete(productID); err != nil {
		return internal.NewInternalError("failed to delete product", err)
	}
	s.invalidateCache(productID)

	s.auditor.Log(audit.ActionProductDeleted, productID, fmt.Sprintf("deleted product %q", p.Name), actor.ID)
	return nil
}

// ----------------- queries -----------------

// GetProducts lists passports the actor may see. An empty actorID is an
// anonymous caller and sees only published passports.
func (s *Service) GetProducts(f Filters, actorID string) ([]*Product, error) {
	if actorID == "" {
		f.PublishedOnly = true
		f.VisibleToCompany = ""
		return s.search(f)
	}

	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	if !actor.HasGlobalRole() {
		f.VisibleToCompany = actor.CompanyID
	}
	return s.search(f)
}

func (s *Service) search(f Filters) ([]*Product, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	products, err := s.repo.Search(f)
	if err != nil {
		return nil, internal.NewInternalError("failed to list products", err)
	}
	return products, nil
}

// GetProductByID returns not-found both for missing passports and for
// passports the actor may not see, so existence never leaks across tenants.
func (s *Service) GetProductByID(productID, actorID string) (*Product, error) {
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}

	var actor *auth.User
	if actorID != "" {
		actor, err = s.loadActor(actorID)
		if err != nil {
			return nil, err
		}
	}
	if !canView(actor, p) {
		return nil, errNotFound
	}
	return p, nil
}

// GetPublicPassport serves the unauthenticated passport endpoint, cache
// first. Only published passports are served.
func (s *Service) GetPublicPassport(ctx context.Context, productID string) (*Product, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetPassport(ctx, productID); err != nil {
			s.logger.Warn("passport cache read failed", "product_id", productID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPublished {
		return nil, errNotFound
	}

	if s.cache != nil {
		if err := s.cache.SetPassport(ctx, p); err != nil {
			s.logger.Warn("passport cache write failed", "product_id", productID, "error", err)
		}
	}
	return p, nil
}

// ----------------- verification workflow -----------------

func (s *Service) SubmitForReview(productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductSubmit, p); err != nil {
		return nil, err
	}
	if !p.CanSubmit() {
		return nil, internal.NewConflictError(
			fmt.Sprintf("cannot submit passport in verification status %s", p.VerificationStatus),
			internal.ErrCodeInvalidStatus)
	}

	p.Submit()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionPassportSubmitted, p.ID, fmt.Sprintf("submitted passport for %q", p.Name), actor.ID)
	s.publish(events.NewPassportEvent(events.EventTypePassportSubmitted, p.ID, p.CompanyID, p.Name, actor.ID, ""))
	return p, nil
}

// ApprovePassport marks the passport for anchoring and hands it to the
// anchoring processor. Approving an already verified passport is a no-op.
func (s *Service) ApprovePassport(productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductApprove, p); err != nil {
		return nil, err
	}
	if p.VerificationStatus == VerificationVerified {
		return p, nil
	}
	if !p.CanApprove() {
		return nil, internal.NewConflictError(
			fmt.Sprintf("cannot approve passport in verification status %s", p.VerificationStatus),
			internal.ErrCodeInvalidStatus)
	}

	p.BeginMinting()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionPassportApproved, p.ID, fmt.Sprintf("approved passport for %q, anchoring started", p.Name), actor.ID)
	s.publish(events.NewPassportEvent(events.EventTypePassportApproved, p.ID, p.CompanyID, p.Name, actor.ID, ""))

	if err := s.anchorer.Enqueue(p.ID, actor.ID); err != nil {
		// The job queue is full; the passport stays in isMinting and the
		// reconciler or a manual re-approve picks it up.
		s.logger.Error("failed to enqueue anchoring job", "product_id", p.ID, "error", err)
	}
	return p, nil
}

func (s *Service) RejectPassport(productID string, dto RejectDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductReject, p); err != nil {
		return nil, err
	}
	if !p.CanReject() {
		return nil, internal.NewConflictError(
			fmt.Sprintf("cannot reject passport in verification status %s", p.VerificationStatus),
			internal.ErrCodeInvalidStatus)
	}

	p.Reject(dto.Reason, dto.Gaps)
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionPassportRejected, p.ID, fmt.Sprintf("rejected passport for %q: %s", p.Name, dto.Reason), actor.ID)
	s.publish(events.NewPassportEvent(events.EventTypePassportRejected, p.ID, p.CompanyID, p.Name, actor.ID, dto.Reason))
	return p, nil
}

func (s *Service) ResolveComplianceIssue(productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductResolve, p); err != nil {
		return nil, err
	}
	if !p.CanResolve() {
		return nil, internal.NewConflictError(
			fmt.Sprintf("cannot resolve passport in verification status %s", p.VerificationStatus),
			internal.ErrCodeInvalidStatus)
	}

	p.Resolve()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionComplianceResolved, p.ID, fmt.Sprintf("compliance issue resolved for %q, passport back in draft", p.Name), actor.ID)
	return p, nil
}

func (s *Service) OverrideVerification(productID string, dto OverrideDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductOverride, p); err != nil {
		return nil, err
	}

	p.Override(actor.ID, dto.Reason, time.Now())
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionVerificationOverride, p.ID, fmt.Sprintf("verification overridden for %q: %s", p.Name, dto.Reason), actor.ID)
	return p, nil
}

func (s *Service) ArchiveProduct(productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductEdit, p); err != nil {
		return nil, err
	}

	p.Archive()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionProductArchived, p.ID, fmt.Sprintf("archived product %q", p.Name), actor.ID)
	return p, nil
}

// ----------------- custody, ownership, proofs -----------------

func (s *Service) AddCustodyStep(productID string, dto CustodyStepDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductEdit, p); err != nil {
		return nil, err
	}

	p.AddCustodyStep(CustodyStep{
		ID:        uuid.New().String(),
		Holder:    dto.Holder,
		Location:  dto.Location,
		Note:      dto.Note,
		Timestamp: time.Now(),
	})
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionCustodyUpdated, p.ID, fmt.Sprintf("custody step added: now held by %s", dto.Holder), actor.ID)
	return p, nil
}

func (s *Service) TransferOwnership(productID string, dto TransferOwnershipDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductEdit, p); err != nil {
		return nil, err
	}
	if p.OwnershipNFT == nil {
		return nil, internal.NewValidationError("product has no ownership NFT to transfer", internal.ErrCodeNoOwnershipNFT)
	}

	previous := p.OwnershipNFT.OwnerAddress
	p.OwnershipNFT.OwnerAddress = dto.NewOwnerAddress
	p.touch()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionOwnershipTransferred, p.ID,
		fmt.Sprintf("ownership transferred from %s to %s", previous, dto.NewOwnerAddress), actor.ID)
	return p, nil
}

func (s *Service) GenerateZKProof(ctx context.Context, productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductGenerateZKP, p); err != nil {
		return nil, err
	}

	proof, err := s.oracle.GenerateComplianceProof(ctx, p)
	if err != nil {
		return nil, internal.NewExternalError("compliance proof generation failed", internal.ErrCodeOracleFailed, err)
	}

	p.ZKProof = proof
	p.touch()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionZKPGenerated, p.ID, fmt.Sprintf("zero-knowledge compliance proof generated for %q", p.Name), actor.ID)
	return p, nil
}

func (s *Service) VerifyZKProof(ctx context.Context, productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductGenerateZKP, p); err != nil {
		return nil, err
	}
	if p.ZKProof == nil {
		return nil, internal.NewValidationError("product has no proof to verify", internal.ErrCodeProofMissing)
	}

	valid, err := s.oracle.VerifyComplianceProof(ctx, p.ZKProof.Proof)
	if err != nil {
		return nil, internal.NewExternalError("proof verification failed", internal.ErrCodeOracleFailed, err)
	}
	if !valid {
		return nil, internal.NewValidationError("proof was rejected by the oracle", internal.ErrCodeProofMissing)
	}

	now := time.Now()
	p.ZKProof.IsVerified = true
	p.ZKProof.VerifiedAt = &now
	p.touch()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionZKPVerified, p.ID, fmt.Sprintf("zero-knowledge proof verified for %q", p.Name), actor.ID)
	return p, nil
}

// ----------------- customs, end of life, service -----------------

func (s *Service) PerformCustomsInspection(productID string, dto CustomsInspectionDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductCustomsInspect, p); err != nil {
		return nil, err
	}

	p.AddCustomsInspection(CustomsInspection{
		ID:          uuid.New().String(),
		Status:      dto.Status,
		Location:    dto.Location,
		Notes:       dto.Notes,
		InspectorID: actor.ID,
		Date:        time.Now(),
	})
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionCustomsInspected, p.ID,
		fmt.Sprintf("customs inspection recorded for %q: %s", p.Name, dto.Status), actor.ID)
	return p, nil
}

// MarkAsRecycled closes the passport's end-of-life axis and mints circularity
// credits to the recycler. Two audit entries result: one on the product, one
// on the recycler's credit balance.
func (s *Service) MarkAsRecycled(productID, actorID string) (*Product, error) {
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductRecycle, p); err != nil {
		return nil, err
	}
	if !p.CanRecycle() {
		return nil, internal.NewConflictError("only published, active products can be recycled", internal.ErrCodeInvalidStatus)
	}

	p.Recycle()
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionProductRecycled, p.ID, fmt.Sprintf("product %q marked as recycled", p.Name), actor.ID)

	if err := s.users.AddCircularityCredits(actor.ID, CircularityCreditsPerRecycle); err != nil {
		s.logger.Error("failed to mint circularity credits", "user_id", actor.ID, "error", err)
	} else {
		s.auditor.Log(audit.ActionCreditsMinted, actor.ID,
			fmt.Sprintf("%d circularity credits minted for recycling %q", CircularityCreditsPerRecycle, p.Name), actor.ID)
	}

	s.publish(events.NewPassportEvent(events.EventTypeProductRecycled, p.ID, p.CompanyID, p.Name, actor.ID, ""))
	return p, nil
}

func (s *Service) AddServiceRecord(productID string, dto ServiceRecordDTO, actorID string) (*Product, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.loadActor(actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPermission(actor, auth.ActionProductServiceRecord, p); err != nil {
		return nil, err
	}

	p.AddServiceRecord(ServiceRecord{
		ID:           uuid.New().String(),
		ProviderID:   actor.ID,
		ProviderName: actor.Name,
		Notes:        dto.Notes,
		CreatedAt:    time.Now(),
	})
	if err := s.update(p); err != nil {
		return nil, err
	}

	s.auditor.Log(audit.ActionProductServiced, p.ID, fmt.Sprintf("service record added for %q", p.Name), actor.ID)
	return p, nil
}
