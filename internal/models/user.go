package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// User represents a registered schedule owner stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Semester     string         `db:"semester" json:"semester"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Schedule     types.JSONText `db:"schedule" json:"-"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// UserSchedule is the comparison-sized projection of a user row.
type UserSchedule struct {
	Username string         `db:"username"`
	Active   bool           `db:"active"`
	Schedule types.JSONText `db:"schedule"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Semester  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SemesterGroup lists the users registered under one semester tag,
// the cohort unit the comparison picker works with.
type SemesterGroup struct {
	Semester string     `json:"semester"`
	Users    []UserInfo `json:"users"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
