package postgres

import (
	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/audit"
)

// AuditRepository implements audit.Repository using GORM. Insert-only; there
// are deliberately no update or delete methods.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(entry *audit.Entry) error {
	return r.db.Create(entry).Error
}

func (r *AuditRepository) List(limit, offset int) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func (r *AuditRepository) ListByEntity(entityID string, limit, offset int) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	err := r.db.Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
