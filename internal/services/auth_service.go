package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"debtbook/internal/models"
	"debtbook/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login, account recovery and session
// tokens. Tokens are signed HS256 claims carrying the user's ID and username;
// a token stops resolving as soon as its username claim no longer matches an
// existing user, which is what invalidates old tokens after a rename.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which a session token is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// RegisterUser registers a new user, hashes the password and the recovery
// answer, and returns a session token for the fresh account.
func (s *AuthService) RegisterUser(username, password, recoveryQuestion, recoveryAnswer string) (string, *models.User, error) {
	if existing, err := s.userRepo.GetByUsername(username); err == nil && existing != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(normalizeAnswer(recoveryAnswer)), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash recovery answer: %w", err)
	}

	user := &models.User{
		Username:           username,
		PasswordHash:       string(passwordHash),
		RecoveryQuestion:   recoveryQuestion,
		RecoveryAnswerHash: string(answerHash),
	}
	if err := s.userRepo.Create(user); err != nil {
		return "", nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// LoginUser authenticates a user and returns a session token if successful.
// The username is matched case-insensitively.
func (s *AuthService) LoginUser(username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrIncorrectPassword
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// FindUserForRecovery looks up a user so the caller can present the recovery
// question.
func (s *AuthService) FindUserForRecovery(username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// FindUserByID looks up a user by their immutable ID.
func (s *AuthService) FindUserByID(id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// VerifyRecoveryAnswer checks the recovery answer, compared
// case-insensitively. An absent user reports the same error as a wrong
// answer.
func (s *AuthService) VerifyRecoveryAnswer(username, answer string) error {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrRecoveryAnswerIncorrect
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.RecoveryAnswerHash), []byte(normalizeAnswer(answer))); err != nil {
		return ErrRecoveryAnswerIncorrect
	}
	return nil
}

// ResetPassword replaces the user's password hash.
func (s *AuthService) ResetPassword(username, newPassword string) error {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(passwordHash)
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

// UpdateUsername changes the user's username in a single record update and
// returns a token for the new name. Customers are keyed by the immutable user
// ID, so no ledger data moves. Tokens issued for the old name stop resolving.
func (s *AuthService) UpdateUsername(user *models.User, newUsername string) (string, *models.User, error) {
	if existing, err := s.userRepo.GetByUsername(newUsername); err == nil && existing != nil && existing.ID != user.ID {
		return "", nil, fmt.Errorf("%w: %s", ErrUsernameTaken, newUsername)
	}

	user.Username = newUsername
	if err := s.userRepo.Update(user); err != nil {
		return "", nil, fmt.Errorf("failed to update username: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ResolveUser resolves a session token to the user it identifies. Any failure
// along the way reports ErrUnauthorized.
func (s *AuthService) ResolveUser(tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, ErrUnauthorized
	}
	// Guard against the old name being re-registered by someone else.
	if userID, ok := claims["user_id"].(string); !ok || userID != user.ID {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// ValidateToken parses and validates a session token, returning the claims if
// valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(s.tokenDurat).Unix(),
		"iat":      time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// Recovery answers are compared case-insensitively, ignoring surrounding
// whitespace.
func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
