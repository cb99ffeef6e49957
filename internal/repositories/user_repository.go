package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"cgu-connect/internal/models"
)

const userColumns = `id, username, email, password_hash, external_id, display_name, bio, avatar_url, semester, department, profile_completed, created_at, updated_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, userID int64) (models.User, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate, now time.Time) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a user. Username and email are unique.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	query := r.db.Rebind(`INSERT INTO users (username, email, password_hash, external_id, display_name, bio, avatar_url, semester, department, profile_completed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.ExternalID, user.DisplayName, user.Bio,
		user.AvatarURL, user.Semester, user.Department, user.ProfileCompleted, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return user, nil
}

// Get fetches a user by id.
func (r *UserRepo) Get(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Exists reports whether a user row exists.
func (r *UserRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`), userID)
	return exists, err
}

// UpdateProfile overwrites the editable profile fields. The completion flag
// only ever flips to true.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate, now time.Time) (models.User, error) {
	query := r.db.Rebind(`UPDATE users SET display_name = ?, bio = ?, avatar_url = ?, semester = ?, department = ?,
        profile_completed = (profile_completed OR ?), updated_at = ?
        WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		update.DisplayName, update.Bio, update.AvatarURL, update.Semester, update.Department, update.Complete(), now, userID)
	if err != nil {
		return models.User{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if count == 0 {
		return models.User{}, ErrUserNotFound
	}
	return r.Get(ctx, userID)
}
