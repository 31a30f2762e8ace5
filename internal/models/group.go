package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID           string    `bun:"id,pk" json:"id"`
	OwnerID      string    `bun:"owner_id,notnull" json:"owner_id"`
	RestaurantID string    `bun:"restaurant_id,notnull" json:"restaurant_id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Visibility   string    `bun:"visibility,notnull" json:"visibility"`
	JoinCode     string    `bun:"join_code,unique,nullzero" json:"join_code,omitempty"`
	EndAt        time.Time `bun:"end_at,notnull" json:"end_at"`
	IsClosed     bool      `bun:"is_closed,notnull" json:"is_closed"`
	MaxMembers   int       `bun:"max_members,notnull" json:"max_members,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Owner      *User         `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Restaurant *Restaurant   `bun:"rel:belongs-to,join:restaurant_id=id" json:"restaurant,omitempty"`
	Members    []GroupMember `bun:"rel:has-many,join:id=group_id" json:"members,omitempty"`

	MemberCount int `bun:"-" json:"member_count"`
}

func (g *Group) IsPrivate() bool {
	return g.Visibility == VisibilityPrivate
}

// Expired reports whether end_at has passed, regardless of the closed flag.
func (g *Group) Expired(now time.Time) bool {
	return !g.EndAt.After(now)
}

type GroupMember struct {
	bun.BaseModel `bun:"table:group_members"`

	ID       string    `bun:"id,pk" json:"id"`
	GroupID  string    `bun:"group_id,notnull,unique:group_member" json:"group_id"`
	UserID   string    `bun:"user_id,notnull,unique:group_member" json:"user_id"`
	JoinedAt time.Time `bun:"joined_at,notnull,default:current_timestamp" json:"joined_at"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}
