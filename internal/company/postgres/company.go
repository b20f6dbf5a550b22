package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/company"
)

// CompanyRepository implements company.Repository using GORM.
type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) company.Repository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(c *company.Company) error {
	return r.db.Create(c).Error
}

func (r *CompanyRepository) GetByID(id string) (*company.Company, error) {
	var c company.Company
	err := r.db.Where("id = ?", id).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, company.ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepository) GetAll() ([]*company.Company, error) {
	var companies []*company.Company
	err := r.db.Order("name ASC").Find(&companies).Error
	return companies, err
}

func (r *CompanyRepository) Update(c *company.Company) error {
	c.UpdatedAt = time.Now()
	return r.db.Save(c).Error
}
