package domain

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	PasswordHash string    `gorm:"size:191;not null" json:"-"`
	Role         string    `gorm:"size:16;not null;default:user" json:"role"` // "user"/"admin"
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int, q string) ([]User, int64, error)
	ByIDs(ctx context.Context, ids []string) (map[string]User, error)
}
