package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go-library-api/internal/domain"
)

type BorrowRepo struct{ db *gorm.DB }

func NewBorrowRepo(db *gorm.DB) *BorrowRepo { return &BorrowRepo{db: db} }

func (r *BorrowRepo) FindActiveByUser(ctx context.Context, userID string) ([]domain.BorrowRecord, error) {
	var recs []domain.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.BorrowStatusBorrowed).
		Order("borrow_date DESC").
		Find(&recs).Error
	return recs, err
}

func (r *BorrowRepo) FindOverdue(ctx context.Context, now time.Time) ([]domain.BorrowRecord, error) {
	var recs []domain.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.BorrowStatusBorrowed, now).
		Order("due_date ASC").
		Find(&recs).Error
	return recs, err
}

func (r *BorrowRepo) ActiveBookIDs(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0, 4)
	err := r.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Where("user_id = ? AND status = ?", userID, domain.BorrowStatusBorrowed).
		Order("borrow_date ASC").
		Pluck("book_id", &ids).Error
	return ids, err
}
