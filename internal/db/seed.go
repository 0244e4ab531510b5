package db

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/internal/models"
)

// Seed makes sure the admin user exists. It is idempotent and does nothing
// without an email. An existing user with that email is promoted to admin.
func Seed(ctx context.Context, conn *gorm.DB, adminEmail string) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(adminEmail))
	if email == "" {
		return nil, nil
	}
	var user models.User
	err := conn.WithContext(ctx).
		Where(models.User{Email: email}).
		Attrs(models.User{Name: "Administrator", Role: models.RoleAdmin}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, errors.Wrap(err, "seed admin user")
	}
	if user.Role != models.RoleAdmin {
		if err := conn.WithContext(ctx).Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
			return nil, errors.Wrap(err, "promote admin user")
		}
		user.Role = models.RoleAdmin
	}
	return &user, nil
}
