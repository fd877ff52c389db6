package repositories

import "debtbook/internal/models"

// UserRepository defines the interface for user data access.
// Username lookups are case-insensitive.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	Update(user *models.User) error
}
