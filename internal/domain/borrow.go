package domain

import (
	"context"
	"time"
)

const (
	BorrowStatusBorrowed = "borrowed"
	BorrowStatusReturned = "returned"
)

// BorrowRecord 是借阅台账的一条记录：借出时创建，归还时改写一次，永不删除。
// 逾期不落库，读取时由 DueDate 和当前时间现场计算。
type BorrowRecord struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	UserID     string     `gorm:"size:36;not null;index;index:idx_active_loan,priority:1" json:"userId"`
	BookID     string     `gorm:"size:36;not null;index;index:idx_active_loan,priority:2" json:"bookId"`
	BorrowDate time.Time  `gorm:"index;not null" json:"borrowDate"`
	DueDate    time.Time  `gorm:"index;not null" json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	Status     string     `gorm:"size:16;not null;index:idx_active_loan,priority:3" json:"status"` // "borrowed"/"returned"
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (BorrowRecord) TableName() string { return "borrow_records" }

func (r *BorrowRecord) IsOverdue(now time.Time) bool {
	return r.Status == BorrowStatusBorrowed && r.DueDate.Before(now)
}

// DaysUntilDue 返回距离到期的天数（可为小数，负值表示已逾期）。
func (r *BorrowRecord) DaysUntilDue(now time.Time) float64 {
	return r.DueDate.Sub(now).Hours() / 24
}

type BorrowRepository interface {
	FindActiveByUser(ctx context.Context, userID string) ([]BorrowRecord, error)
	// FindOverdue 返回到 now 为止已逾期的活跃记录，按到期时间升序。
	FindOverdue(ctx context.Context, now time.Time) ([]BorrowRecord, error)
	// ActiveBookIDs 即用户当前在借的 bookId 集合，由台账投影而来。
	ActiveBookIDs(ctx context.Context, userID string) ([]string, error)
}
