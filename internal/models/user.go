package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	Name         string    `bun:"name,notnull" json:"name"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         string    `bun:"role,notnull" json:"role"`
	IsVerified   bool      `bun:"is_verified,notnull" json:"is_verified"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
