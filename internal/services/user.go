package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/validation"
)

// UserService provisions staff accounts and their roles.
type UserService struct {
	db *gorm.DB
	// roleChanged is called after a user's role is written, to drop cached profiles.
	roleChanged func(userID uint)
}

func NewUserService(db *gorm.DB, roleChanged func(userID uint)) *UserService {
	if roleChanged == nil {
		roleChanged = func(uint) {}
	}
	return &UserService{db: db, roleChanged: roleChanged}
}

type UserInput struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// Exists reports whether id is an active user.
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return err == nil && count > 0
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	v := validation.Violations{}
	validation.Required("email", in.Email, v)
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		v["email"] = "invalid_email"
	}
	if !in.Role.Valid() {
		v["role"] = "invalid_choice"
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "check email")
	}
	if count > 0 {
		return nil, validation.Field("email", "already_exists")
	}
	u := models.User{Email: in.Email, Name: in.Name, Role: in.Role}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return &u, nil
}

// SetRole changes a user's role.
func (s *UserService) SetRole(ctx context.Context, id uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, validation.Field("role", "invalid_choice")
	}
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "user %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if err := s.db.WithContext(ctx).Model(&u).Update("role", role).Error; err != nil {
		return nil, errors.Wrap(err, "update role")
	}
	u.Role = role
	s.roleChanged(u.ID)
	return &u, nil
}
