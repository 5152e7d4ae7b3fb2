package domain

import (
	"context"
	"time"
)

type Book struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Author          string    `gorm:"size:255;not null" json:"author"`
	ISBN            string    `gorm:"uniqueIndex;size:32" json:"isbn"`
	Category        string    `gorm:"index;size:64" json:"category"`
	Description     string    `gorm:"type:text" json:"description"`
	TotalCopies     int       `gorm:"not null" json:"totalCopies"`
	AvailableCopies int       `gorm:"not null" json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Book) TableName() string { return "books" }

type BookRepository interface {
	Create(ctx context.Context, b *Book) error
	// List 按标题/作者模糊搜索 + 分类过滤（两者都可为空）
	List(ctx context.Context, search, category string) ([]Book, error)
	ByIDs(ctx context.Context, ids []string) (map[string]Book, error)
}
