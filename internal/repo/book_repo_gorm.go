package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"go-library-api/internal/domain"
)

type BookRepo struct{ db *gorm.DB }

func NewBookRepo(db *gorm.DB) *BookRepo { return &BookRepo{db: db} }

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookRepo) List(ctx context.Context, search, category string) ([]domain.Book, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Book{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", like, like)
	}
	if category != "" && category != "all" {
		tx = tx.Where("category = ?", category)
	}
	var books []domain.Book
	if err := tx.Order("created_at DESC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepo) ByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error) {
	out := make(map[string]domain.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var books []domain.Book
	if err := r.db.WithContext(ctx).Find(&books, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	for _, b := range books {
		out[b.ID] = b
	}
	return out, nil
}
