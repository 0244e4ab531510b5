package policy

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/gate"
	"github.com/diewo77/go-quotes/internal/models"
)

// DBProfileResolver maps a user id to the profile of the user's role.
// It implements the gate.ProfileResolver interface for uint user IDs.
type DBProfileResolver struct {
	DB *gorm.DB
}

// NewDBProfileResolver creates a new database-backed profile resolver.
func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve returns nil without error for unknown users and unknown roles.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Select("id", "role").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve user profile")
	}
	return ProfileFor(user.Role), nil
}
