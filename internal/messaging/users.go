package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cgu-connect/internal/models"
	"cgu-connect/internal/repositories"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

const (
	minPasswordLength = 8
	// bcrypt only accepts up to 72 bytes
	maxPasswordLength = 72
)

// CreateUserInput is the signup payload.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// CreateUser registers an account with a bcrypt credential hash.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (models.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if !usernamePattern.MatchString(username) {
		return models.User{}, fmt.Errorf("%w: username must be 3-32 chars of a-z, 0-9, '_' or '.'", ErrInvalidUser)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return models.User{}, fmt.Errorf("%w: invalid email", ErrInvalidUser)
	}
	if len(in.Password) < minPasswordLength {
		return models.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return models.User{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidUser, maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	now := s.opts.Now()
	user, err := s.users.Create(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hashed,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, storeFailure("create user", err)
	}
	return user, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, notFound("user", userID)
		}
		return models.User{}, storeFailure("load user", err)
	}
	return user, nil
}

// UpdateProfile edits the profile of userID.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	update.DisplayName = strings.TrimSpace(update.DisplayName)
	update.Semester = strings.TrimSpace(update.Semester)
	update.Department = strings.TrimSpace(update.Department)

	user, err := s.users.UpdateProfile(ctx, userID, update, s.opts.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, notFound("user", userID)
		}
		return models.User{}, storeFailure("update profile", err)
	}
	return user, nil
}
