package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/product"
)

// ProductRepository implements product.Repository using GORM.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) product.Repository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(p *product.Product) error {
	return r.db.Create(p).Error
}

func (r *ProductRepository) GetByID(id string) (*product.Product, error) {
	var p product.Product
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, product.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update performs an optimistic-concurrency write: the row is only updated
// when its stored version matches the version the caller loaded. Zero rows
// affected with an existing row means a concurrent writer won.
func (r *ProductRepository) Update(p *product.Product) error {
	loadedVersion := p.Version
	p.Version = loadedVersion + 1

	result := r.db.Model(&product.Product{}).
		Where("id = ? AND version = ?", p.ID, loadedVersion).
		Select("*").
		Omit("created_at").
		Updates(p)
	if result.Error != nil {
		p.Version = loadedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		p.Version = loadedVersion

		var count int64
		if err := r.db.Model(&product.Product{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return product.ErrProductNotFound
		}
		return product.ErrVersionConflict
	}
	return nil
}

// FindMinting returns passports stuck mid-anchoring, oldest first.
func (r *ProductRepository) FindMinting() ([]*product.Product, error) {
	var products []*product.Product
	err := r.db.Model(&product.Product{}).
		Where("is_minting = ?", true).
		Order("last_updated ASC").
		Find(&products).Error
	return products, err
}

func (r *ProductRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&product.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

// Search applies the visibility scope and optional filters. VisibleToCompany
// widens the published-only baseline to include that company's own drafts.
func (r *ProductRepository) Search(f product.Filters) ([]*product.Product, error) {
	query := r.db.Model(&product.Product{})

	if f.PublishedOnly {
		query = query.Where("status = ?", product.StatusPublished)
	} else if f.VisibleToCompany != "" {
		query = query.Where("status = ? OR company_id = ?", product.StatusPublished, f.VisibleToCompany)
	}

	if f.Query != "" {
		// Case-insensitive substring match across name, supplier and GTIN.
		// LOWER/LIKE instead of ILIKE keeps the clause portable to the
		// sqlite-backed repository tests.
		pattern := "%" + strings.ToLower(f.Query) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(supplier_name) LIKE ? OR LOWER(gtin) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.VerificationStatus != "" {
		query = query.Where("verification_status = ?", f.VerificationStatus)
	}

	var products []*product.Product
	err := query.Order("last_updated DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&products).Error
	return products, err
}
