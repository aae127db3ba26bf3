package model

import "time"

// Contact is the durable record a READY staging row is promoted into.
// Email uniqueness is enforced per user, not globally.
type Contact struct {
	ID        int64     `json:"id" db:"contact_id"`
	StagingID int64     `json:"staging_id" db:"contact_staging_id"`
	UserID    string    `json:"user_id" db:"contact_user_id"`
	Email     string    `json:"email" db:"contact_email"`
	FirstName string    `json:"first_name" db:"contact_first_name"`
	LastName  string    `json:"last_name" db:"contact_last_name"`
	Company   string    `json:"company" db:"contact_company"`
	CreatedAt time.Time `json:"created_at" db:"contact_created_at"`
}
