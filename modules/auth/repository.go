package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
)

var (
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when an account already claims the email.
	ErrUserExists = errors.New("user with this email already exists")
)

// userRepository persists the accounts behind the identity provider. Lookups
// return the full account record; the session-facing projection is derived
// from it via User.Identity, never stored separately.
type userRepository struct {
	db *gorm.DB
}

func newUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) create(user *domain.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) byID(id string) (*domain.User, error) {
	return r.one("id = ?", id)
}

func (r *userRepository) byEmail(email string) (*domain.User, error) {
	return r.one("email = ?", email)
}

func (r *userRepository) one(query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where(query, arg).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// emailTaken reports whether an account already claims the address. Cheaper
// than byEmail when the record itself is not needed.
func (r *userRepository) emailTaken(email string) (bool, error) {
	var count int64
	if err := r.db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count > 0, nil
}
