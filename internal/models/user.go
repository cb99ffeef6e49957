package models

import "time"

// User is a CGU Connect account.
type User struct {
	ID               int64     `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     *string   `db:"password_hash" json:"-"`
	ExternalID       *string   `db:"external_id" json:"-"`
	DisplayName      string    `db:"display_name" json:"display_name"`
	Bio              string    `db:"bio" json:"bio"`
	AvatarURL        *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Semester         string    `db:"semester" json:"semester"`
	Department       string    `db:"department" json:"department"`
	ProfileCompleted bool      `db:"profile_completed" json:"profile_completed"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	DisplayName string  `json:"display_name"`
	Bio         string  `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
	Semester    string  `json:"semester"`
	Department  string  `json:"department"`
}

// Complete reports whether the update fills every required profile field.
func (p ProfileUpdate) Complete() bool {
	return p.DisplayName != "" && p.Semester != "" && p.Department != ""
}
