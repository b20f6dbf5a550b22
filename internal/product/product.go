package product

import (
	"errors"
	"time"
)

// Status is the publication axis of a passport.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
	StatusArchived  Status = "Archived"
)

// VerificationStatus is the compliance-review axis. AnchoringFailed is the
// terminal state of an anchoring saga that exhausted its retries; resolve
// moves it back to Draft/NotSubmitted.
type VerificationStatus string

const (
	VerificationNotSubmitted    VerificationStatus = "NotSubmitted"
	VerificationPending         VerificationStatus = "Pending"
	VerificationVerified        VerificationStatus = "Verified"
	VerificationFailed          VerificationStatus = "Failed"
	VerificationAnchoringFailed VerificationStatus = "AnchoringFailed"
)

// EndOfLifeStatus is orthogonal to Status: recycling a published passport
// does not unpublish it.
type EndOfLifeStatus string

const (
	EndOfLifeActive   EndOfLifeStatus = "Active"
	EndOfLifeRecycled EndOfLifeStatus = "Recycled"
)

type Material struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage,omitempty"`
	Recycled   bool    `json:"recycled,omitempty"`
	Origin     string  `json:"origin,omitempty"`
}

type Certification struct {
	Name       string     `json:"name"`
	Issuer     string     `json:"issuer,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	DocumentID string     `json:"document_id,omitempty"`
}

type Manufacturing struct {
	Location     string `json:"location,omitempty"`
	Country      string `json:"country,omitempty"`
	FacilityID   string `json:"facility_id,omitempty"`
	EnergySource string `json:"energy_source,omitempty"`
}

type Packaging struct {
	Material   string  `json:"material,omitempty"`
	WeightG    float64 `json:"weight_g,omitempty"`
	Recyclable bool    `json:"recyclable,omitempty"`
}

type Lifecycle struct {
	CarbonFootprintKg  float64 `json:"carbon_footprint_kg,omitempty"`
	RepairabilityScore float64 `json:"repairability_score,omitempty"`
	ExpectedYears      int     `json:"expected_years,omitempty"`
}

type Battery struct {
	Chemistry          string  `json:"chemistry,omitempty"`
	CapacityWh         float64 `json:"capacity_wh,omitempty"`
	Removable          bool    `json:"removable,omitempty"`
	RecycledContentPct float64 `json:"recycled_content_pct,omitempty"`
}

// RegulationCompliance is the per-regulation sub-record keyed by regulation
// name in Product.Compliance.
type RegulationCompliance struct {
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

type ComplianceGap struct {
	Regulation string `json:"regulation"`
	Issue      string `json:"issue"`
}

type Sustainability struct {
	Score   float64         `json:"score,omitempty"`
	Summary string          `json:"summary,omitempty"`
	Gaps    []ComplianceGap `json:"gaps,omitempty"`
}

type CustomsInspection struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	InspectorID string    `json:"inspector_id"`
	Date        time.Time `json:"date"`
}

// Customs stores only the append-only history; the latest inspection is
// derived, never duplicated into separate head fields.
type Customs struct {
	History []CustomsInspection `json:"history,omitempty"`
}

// Latest returns the most recent inspection, or nil when none happened.
func (c Customs) Latest() *CustomsInspection {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[len(c.History)-1]
}

type CustodyStep struct {
	ID        string    `json:"id"`
	Holder    string    `json:"holder"`
	Location  string    `json:"location,omitempty"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type OwnershipNFT struct {
	ContractAddress string `json:"contract_address"`
	TokenID         string `json:"token_id"`
	OwnerAddress    string `json:"owner_address"`
	ChainID         int64  `json:"chain_id,omitempty"`
}

type ZKProof struct {
	Proof       string     `json:"proof"`
	IsVerified  bool       `json:"is_verified"`
	GeneratedAt time.Time  `json:"generated_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

type BlockchainProof struct {
	TxHash      string    `json:"tx_hash"`
	ExplorerURL string    `json:"explorer_url"`
	Chain       string    `json:"chain"`
	AnchoredAt  time.Time `json:"anchored_at"`
}

type VerificationOverride struct {
	UserID string    `json:"user_id"`
	Reason string    `json:"reason"`
	Date   time.Time `json:"date"`
}

type ServiceRecord struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name,omitempty"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product is the passport aggregate. Nested documents persist as JSONB; the
// lifecycle axes and version column are plain columns so the workflow engine
// can index and compare-and-swap on them.
type Product struct {
	ID           string `json:"id" gorm:"primaryKey"`
	GTIN         string `json:"gtin,omitempty" gorm:"column:gtin;index"`
	CompanyID    string `json:"company_id" gorm:"column:company_id;index;not null"`
	SupplierName string `json:"supplier_name,omitempty" gorm:"column:supplier_name"`

	Name        string   `json:"name" gorm:"not null"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty" gorm:"index"`
	Images      []string `json:"images,omitempty" gorm:"type:jsonb;serializer:json"`

	Materials      []Material                      `json:"materials,omitempty" gorm:"type:jsonb;serializer:json"`
	Certifications []Certification                 `json:"certifications,omitempty" gorm:"type:jsonb;serializer:json"`
	Manufacturing  Manufacturing                   `json:"manufacturing,omitempty" gorm:"type:jsonb;serializer:json"`
	Packaging      Packaging                       `json:"packaging,omitempty" gorm:"type:jsonb;serializer:json"`
	Lifecycle      Lifecycle                       `json:"lifecycle,omitempty" gorm:"type:jsonb;serializer:json"`
	Battery        Battery                         `json:"battery,omitempty" gorm:"type:jsonb;serializer:json"`
	Compliance     map[string]RegulationCompliance `json:"compliance,omitempty" gorm:"type:jsonb;serializer:json"`
	Sustainability Sustainability                  `json:"sustainability,omitempty" gorm:"type:jsonb;serializer:json"`
	Customs        Customs                         `json:"customs,omitempty" gorm:"type:jsonb;serializer:json"`
	ChainOfCustody []CustodyStep                   `json:"chain_of_custody,omitempty" gorm:"column:chain_of_custody;type:jsonb;serializer:json"`
	ServiceHistory []ServiceRecord                 `json:"service_history,omitempty" gorm:"column:service_history;type:jsonb;serializer:json"`

	OwnershipNFT         *OwnershipNFT         `json:"ownership_nft,omitempty" gorm:"column:ownership_nft;type:jsonb;serializer:json"`
	ZKProof              *ZKProof              `json:"zk_proof,omitempty" gorm:"column:zk_proof;type:jsonb;serializer:json"`
	VerifiableCredential string                `json:"verifiable_credential,omitempty" gorm:"column:verifiable_credential"`
	BlockchainProof      *BlockchainProof      `json:"blockchain_proof,omitempty" gorm:"column:blockchain_proof;type:jsonb;serializer:json"`
	VerificationOverride *VerificationOverride `json:"verification_override,omitempty" gorm:"column:verification_override;type:jsonb;serializer:json"`

	Status             Status             `json:"status" gorm:"index;default:Draft"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"column:verification_status;index;default:NotSubmitted"`
	EndOfLifeStatus    EndOfLifeStatus    `json:"end_of_life_status" gorm:"column:end_of_life_status;default:Active"`
	IsMinting          bool               `json:"is_minting" gorm:"column:is_minting;default:false"`
	AnchorRetryCount   int                `json:"anchor_retry_count,omitempty" gorm:"column:anchor_retry_count;default:0"`

	Version              int        `json:"version" gorm:"default:1"`
	CreatedAt            time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
	LastUpdated          time.Time  `json:"last_updated" gorm:"column:last_updated;default:now()"`
	LastVerificationDate *time.Time `json:"last_verification_date,omitempty" gorm:"column:last_verification_date"`
}

func (Product) TableName() string {
	return "products"
}

// OwnerCompanyID satisfies auth.Resource.
func (p *Product) OwnerCompanyID() string {
	return p.CompanyID
}

func (p *Product) touch() {
	now := time.Now()
	p.UpdatedAt = now
	p.LastUpdated = now
}

// ----------------- state machine -----------------

func (p *Product) CanSubmit() bool {
	return p.VerificationStatus == VerificationNotSubmitted && p.Status != StatusArchived
}

func (p *Product) Submit() {
	p.VerificationStatus = VerificationPending
	p.touch()
}

func (p *Product) CanApprove() bool {
	return p.VerificationStatus == VerificationPending
}

func (p *Product) BeginMinting() {
	p.IsMinting = true
	p.touch()
}

// CompleteAnchoring applies the terminal success of the anchoring saga:
// credential, anchor receipt, verification and publication land atomically.
func (p *Product) CompleteAnchoring(credential string, proof BlockchainProof) {
	now := time.Now()
	p.VerifiableCredential = credential
	p.BlockchainProof = &proof
	p.VerificationStatus = VerificationVerified
	p.Status = StatusPublished
	p.IsMinting = false
	p.LastVerificationDate = &now
	p.touch()
}

// FailAnchoring is the compensating transition: isMinting never dangles.
func (p *Product) FailAnchoring(retries int) {
	p.VerificationStatus = VerificationAnchoringFailed
	p.IsMinting = false
	p.AnchorRetryCount = retries
	p.touch()
}

func (p *Product) CanReject() bool {
	return p.VerificationStatus == VerificationPending
}

func (p *Product) Reject(reason string, gaps []ComplianceGap) {
	p.VerificationStatus = VerificationFailed
	p.Sustainability.Summary = reason
	p.Sustainability.Gaps = gaps
	p.touch()
}

func (p *Product) CanResolve() bool {
	return p.VerificationStatus == VerificationFailed ||
		p.VerificationStatus == VerificationAnchoringFailed
}

func (p *Product) Resolve() {
	p.VerificationStatus = VerificationNotSubmitted
	p.Status = StatusDraft
	p.IsMinting = false
	p.touch()
}

// Override forces Verified without an anchor receipt; the override record is
// what keeps the Published invariant intact.
func (p *Product) Override(userID, reason string, now time.Time) {
	p.VerificationStatus = VerificationVerified
	p.VerificationOverride = &VerificationOverride{UserID: userID, Reason: reason, Date: now}
	p.LastVerificationDate = &now
	p.touch()
}

func (p *Product) CanRecycle() bool {
	return p.Status == StatusPublished && p.EndOfLifeStatus == EndOfLifeActive
}

// Recycle flips the end-of-life axis only; Status is untouched.
func (p *Product) Recycle() {
	p.EndOfLifeStatus = EndOfLifeRecycled
	p.touch()
}

func (p *Product) Archive() {
	p.Status = StatusArchived
	p.touch()
}

// ----------------- append-only collections -----------------

// AddCustodyStep prepends so the newest holder reads first.
func (p *Product) AddCustodyStep(step CustodyStep) {
	p.ChainOfCustody = append([]CustodyStep{step}, p.ChainOfCustody...)
	p.touch()
}

func (p *Product) AddServiceRecord(record ServiceRecord) {
	p.ServiceHistory = append(p.ServiceHistory, record)
	p.touch()
}

func (p *Product) AddCustomsInspection(inspection CustomsInspection) {
	p.Customs.History = append(p.Customs.History, inspection)
	p.touch()
}

// Domain errors
var (
	ErrProductNotFound = errors.New("product not found")
	ErrVersionConflict = errors.New("product was modified concurrently")
)
