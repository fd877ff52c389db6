package repositories

import (
	"strings"
	"sync"

	"debtbook/internal/models"

	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	users map[string]models.User // keyed by lowercased username
	byID  map[string]string      // user ID -> lowercased username
	mu    sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
		byID:  make(map[string]string),
	}
}

// Create adds a new user.
func (r *MemoryUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	key := strings.ToLower(user.Username)
	r.users[key] = *user
	r.byID[user.ID] = key
	return nil
}

// GetByUsername returns a user by username, compared case-insensitively.
func (r *MemoryUserRepository) GetByUsername(username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// GetByID returns a user by their ID.
func (r *MemoryUserRepository) GetByID(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := r.users[key]
	return &user, nil
}

// Update replaces an existing user record. The user is re-keyed when the
// username changed.
func (r *MemoryUserRepository) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldKey, ok := r.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	newKey := strings.ToLower(user.Username)
	if newKey != oldKey {
		delete(r.users, oldKey)
		r.byID[user.ID] = newKey
	}
	r.users[newKey] = *user
	return nil
}
