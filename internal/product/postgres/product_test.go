package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/norruva/dpp-service/internal/product"
)

func TestProductRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ProductRepository Suite")
}

// SQLiteProduct mirrors the products table without postgres-only defaults so
// AutoMigrate works against the in-memory test database.
type SQLiteProduct struct {
	ID           string `gorm:"primaryKey"`
	GTIN         string `gorm:"column:gtin"`
	CompanyID    string `gorm:"column:company_id;not null"`
	SupplierName string `gorm:"column:supplier_name"`

	Name        string `gorm:"not null"`
	Description string
	Category    string
	Images      string

	Materials      string
	Certifications string
	Manufacturing  string
	Packaging      string
	Lifecycle      string
	Battery        string
	Compliance     string
	Sustainability string
	Customs        string
	ChainOfCustody string `gorm:"column:chain_of_custody"`
	ServiceHistory string `gorm:"column:service_history"`

	OwnershipNFT         string `gorm:"column:ownership_nft"`
	ZKProof              string `gorm:"column:zk_proof"`
	VerifiableCredential string `gorm:"column:verifiable_credential"`
	BlockchainProof      string `gorm:"column:blockchain_proof"`
	VerificationOverride string `gorm:"column:verification_override"`

	Status             string `gorm:"default:Draft"`
	VerificationStatus string `gorm:"column:verification_status;default:NotSubmitted"`
	EndOfLifeStatus    string `gorm:"column:end_of_life_status;default:Active"`
	IsMinting          bool   `gorm:"column:is_minting;default:false"`
	AnchorRetryCount   int    `gorm:"column:anchor_retry_count;default:0"`

	Version              int `gorm:"default:1"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
	LastUpdated          time.Time `gorm:"column:last_updated"`
	LastVerificationDate *time.Time
}

func (SQLiteProduct) TableName() string {
	return "products"
}

var _ = Describe("ProductRepository", func() {
	var (
		db   *gorm.DB
		repo product.Repository
	)

	newProduct := func(id, companyID string, status product.Status) *product.Product {
		now := time.Now()
		return &product.Product{
			ID:                 id,
			Name:               "Solar Panel X1",
			CompanyID:          companyID,
			Category:           "electronics",
			Status:             status,
			VerificationStatus: product.VerificationNotSubmitted,
			EndOfLifeStatus:    product.EndOfLifeActive,
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
			LastUpdated:        now,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteProduct{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewProductRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Create and GetByID", func() {
		It("should round-trip the aggregate including nested documents", func() {
			p := newProduct("prod-1", "acme", product.StatusDraft)
			p.Materials = []product.Material{{Name: "aluminium", Percentage: 40, Recycled: true}}
			p.Customs.History = []product.CustomsInspection{{ID: "ins-1", Status: "cleared", InspectorID: "u-customs", Date: time.Now()}}

			Expect(repo.Create(p)).To(Succeed())

			retrieved, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Name).To(Equal("Solar Panel X1"))
			Expect(retrieved.Materials).To(HaveLen(1))
			Expect(retrieved.Materials[0].Name).To(Equal("aluminium"))
			Expect(retrieved.Customs.Latest()).NotTo(BeNil())
			Expect(retrieved.Customs.Latest().Status).To(Equal("cleared"))
		})

		It("should return ErrProductNotFound for a missing id", func() {
			_, err := repo.GetByID("ghost")
			Expect(err).To(Equal(product.ErrProductNotFound))
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			Expect(repo.Create(newProduct("prod-1", "acme", product.StatusDraft))).To(Succeed())
		})

		It("should persist changes and bump the version", func() {
			p, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())

			p.Name = "Solar Panel X2"
			Expect(repo.Update(p)).To(Succeed())
			Expect(p.Version).To(Equal(2))

			retrieved, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Name).To(Equal("Solar Panel X2"))
			Expect(retrieved.Version).To(Equal(2))
		})

		It("should reject a write based on a stale version", func() {
			first, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())
			second, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())

			first.Name = "Winner"
			Expect(repo.Update(first)).To(Succeed())

			second.Name = "Loser"
			err = repo.Update(second)
			Expect(err).To(Equal(product.ErrVersionConflict))
			Expect(second.Version).To(Equal(1))

			retrieved, err := repo.GetByID("prod-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Name).To(Equal("Winner"))
		})

		It("should distinguish a missing row from a version conflict", func() {
			ghost := newProduct("ghost", "acme", product.StatusDraft)
			err := repo.Update(ghost)
			Expect(err).To(Equal(product.ErrProductNotFound))
		})
	})

	Describe("FindMinting", func() {
		It("should return only rows flagged as minting", func() {
			minting := newProduct("prod-1", "acme", product.StatusDraft)
			minting.IsMinting = true
			Expect(repo.Create(minting)).To(Succeed())
			Expect(repo.Create(newProduct("prod-2", "acme", product.StatusDraft))).To(Succeed())

			results, err := repo.FindMinting()
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("prod-1"))
		})
	})

	Describe("Delete", func() {
		It("should delete an existing row", func() {
			Expect(repo.Create(newProduct("prod-1", "acme", product.StatusDraft))).To(Succeed())

			Expect(repo.Delete("prod-1")).To(Succeed())

			_, err := repo.GetByID("prod-1")
			Expect(err).To(Equal(product.ErrProductNotFound))
		})

		It("should return ErrProductNotFound for a missing row", func() {
			Expect(repo.Delete("ghost")).To(Equal(product.ErrProductNotFound))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(repo.Create(newProduct("prod-1", "acme", product.StatusDraft))).To(Succeed())
			Expect(repo.Create(newProduct("prod-2", "acme", product.StatusPublished))).To(Succeed())
			Expect(repo.Create(newProduct("prod-3", "other-co", product.StatusDraft))).To(Succeed())
			Expect(repo.Create(newProduct("prod-4", "other-co", product.StatusPublished))).To(Succeed())
		})

		It("should return only published rows in published-only scope", func() {
			results, err := repo.Search(product.Filters{PublishedOnly: true, Limit: 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, p := range results {
				Expect(p.Status).To(Equal(product.StatusPublished))
			}
		})

		It("should widen the scope to one company's own rows", func() {
			results, err := repo.Search(product.Filters{VisibleToCompany: "acme", Limit: 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})

		It("should filter by category", func() {
			results, err := repo.Search(product.Filters{Category: "furniture", Limit: 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		Context("with a free-text query", func() {
			BeforeEach(func() {
				p := newProduct("prod-5", "acme", product.StatusPublished)
				p.Name = "Recycled Oak Table"
				p.SupplierName = "GreenLoop Recycling"
				p.GTIN = "04012345678905"
				Expect(repo.Create(p)).To(Succeed())
			})

			It("should match the name case-insensitively", func() {
				results, err := repo.Search(product.Filters{Query: "oak TABLE", Limit: 50})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].ID).To(Equal("prod-5"))
			})

			It("should match the supplier name", func() {
				results, err := repo.Search(product.Filters{Query: "greenloop", Limit: 50})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].SupplierName).To(Equal("GreenLoop Recycling"))
			})

			It("should match a gtin substring", func() {
				results, err := repo.Search(product.Filters{Query: "2345678", Limit: 50})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].GTIN).To(Equal("04012345678905"))
			})

			It("should return nothing when no field matches", func() {
				results, err := repo.Search(product.Filters{Query: "titanium", Limit: 50})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(BeEmpty())
			})
		})

		It("should apply limit and offset", func() {
			results, err := repo.Search(product.Filters{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})
	})
})
