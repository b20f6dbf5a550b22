package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/auth"
)

// UserRepository implements auth.Repository using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByEmail(email string) (*auth.User, error) {
	var user auth.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(id string) (*auth.User, error) {
	var user auth.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Save(user *auth.User) error {
	user.UpdatedAt = time.Now()
	return r.db.Save(user).Error
}

// AddCircularityCredits atomically increments a user's credit balance.
func (r *UserRepository) AddCircularityCredits(userID string, credits int) error {
	result := r.db.Model(&auth.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"circularity_credits": gorm.Expr("circularity_credits + ?", credits),
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
