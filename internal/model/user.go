package model

import "time"

// User represents an application account as stored in the `users`
// table.  Role is either STAFF (front-desk and back-office operators)
// or GUEST (self-service customers).  Authorization decisions are
// always made server-side from this role, never from client state.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – STAFF or GUEST.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role names accepted in the users.role column and in JWT role claims.
const (
	RoleStaff = "STAFF"
	RoleGuest = "GUEST"
)
