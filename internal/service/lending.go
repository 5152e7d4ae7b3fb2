package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-library-api/internal/domain"
	"go-library-api/pkg/utils"
)

var lendingOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "lending_operations_total", Help: "Count of borrow/return operations by outcome"},
	[]string{"op", "outcome"},
)

func init() { prometheus.MustRegister(lendingOps) }

// LendingService 负责借/还的完整生命周期。库存扣减、台账写入必须在
// 同一事务里完成：并发借最后一本时只允许一个请求成功。
type LendingService struct {
	db       *gorm.DB
	books    domain.BookRepository
	borrows  domain.BorrowRepository
	users    domain.UserRepository
	log      *zap.Logger
	now      func() time.Time
	loanDays int
}

func NewLendingService(db *gorm.DB, books domain.BookRepository, borrows domain.BorrowRepository, users domain.UserRepository, l *zap.Logger, loanDays int) *LendingService {
	if loanDays <= 0 {
		loanDays = 14
	}
	return &LendingService{
		db:       db,
		books:    books,
		borrows:  borrows,
		users:    users,
		log:      l,
		now:      time.Now,
		loanDays: loanDays,
	}
}

// WithClock 测试用：替换取当前时间的函数。
func (s *LendingService) WithClock(now func() time.Time) *LendingService {
	s.now = now
	return s
}

// Borrow 借书。前置条件全部在书的行锁下校验，校验通过后条件扣减库存
// 并落一条台账记录；任一步失败整个事务回滚，不留半截状态。
func (s *LendingService) Borrow(ctx context.Context, userID, bookID string) (*domain.BorrowRecord, error) {
	var rec *domain.BorrowRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book domain.Book
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&book, "id = ?", bookID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return err
		}

		// 同一 (user, book) 只允许一条活跃记录
		var active int64
		if err := tx.Model(&domain.BorrowRecord{}).
			Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, domain.BorrowStatusBorrowed).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrAlreadyBorrowed
		}

		// 条件扣减：available_copies > 0 才会命中，RowsAffected 判输赢
		res := tx.Model(&domain.Book{}).
			Where("id = ? AND available_copies > 0", bookID).
			UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookUnavailable
		}

		now := s.now()
		r := &domain.BorrowRecord{
			ID:         utils.NewID(),
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, s.loanDays),
			Status:     domain.BorrowStatusBorrowed,
		}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		rec = r
		return nil
	})

	s.observe("borrow", userID, bookID, err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Return 还书：关闭活跃台账记录并条件回增库存。
func (s *LendingService) Return(ctx context.Context, userID, bookID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan domain.BorrowRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, domain.BorrowStatusBorrowed).
			First(&loan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveLoan
		}
		if err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&domain.BorrowRecord{}).
			Where("id = ? AND status = ?", loan.ID, domain.BorrowStatusBorrowed).
			Updates(map[string]any{
				"status":      domain.BorrowStatusReturned,
				"return_date": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 行锁下不应发生；发生说明被并发关闭
			return ErrNoActiveLoan
		}

		// 回增不允许越过 total_copies；同一对至多一条活跃记录，正常不会命中
		inc := tx.Model(&domain.Book{}).
			Where("id = ? AND available_copies < total_copies", bookID).
			UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
		if inc.Error != nil {
			return inc.Error
		}
		if inc.RowsAffected == 0 {
			return fmt.Errorf("return would exceed total copies for book %s", bookID)
		}
		return nil
	})

	s.observe("return", userID, bookID, err)
	return err
}

func (s *LendingService) observe(op, userID, bookID string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrBookUnavailable),
		errors.Is(err, ErrAlreadyBorrowed), errors.Is(err, ErrNoActiveLoan):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	lendingOps.WithLabelValues(op, outcome).Inc()
	if s.log == nil {
		return
	}
	if err != nil && outcome == "error" {
		s.log.Error("lending op failed", zap.String("op", op), zap.String("userId", userID), zap.String("bookId", bookID), zap.Error(err))
		return
	}
	s.log.Info("lending op", zap.String("op", op), zap.String("userId", userID), zap.String("bookId", bookID), zap.String("outcome", outcome))
}

// BorrowedBook 是“我的在借”视图：台账记录 + 书目详情 + 现算的到期状态。
type BorrowedBook struct {
	domain.BorrowRecord
	Book         domain.Book `json:"book"`
	IsOverdue    bool        `json:"isOverdue"`
	DaysUntilDue float64     `json:"daysUntilDue"`
}

func (s *LendingService) BorrowedBooks(ctx context.Context, userID string) ([]BorrowedBook, error) {
	recs, err := s.borrows.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.BookID)
	}
	books, err := s.books.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]BorrowedBook, 0, len(recs))
	for _, r := range recs {
		b, ok := books[r.BookID]
		if !ok {
			continue // 台账里的孤儿 bookId 不进视图
		}
		out = append(out, BorrowedBook{
			BorrowRecord: r,
			Book:         b,
			IsOverdue:    r.IsOverdue(now),
			DaysUntilDue: r.DaysUntilDue(now),
		})
	}
	return out, nil
}

// OverdueBook 是管理端的逾期视图，额外带上借阅人。
type OverdueBook struct {
	domain.BorrowRecord
	Book        domain.Book `json:"book"`
	User        domain.User `json:"user"`
	DaysOverdue float64     `json:"daysOverdue"`
}

func (s *LendingService) OverdueBooks(ctx context.Context) ([]OverdueBook, error) {
	now := s.now()
	recs, err := s.borrows.FindOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	bookIDs := make([]string, 0, len(recs))
	userIDs := make([]string, 0, len(recs))
	for _, r := range recs {
		bookIDs = append(bookIDs, r.BookID)
		userIDs = append(userIDs, r.UserID)
	}
	books, err := s.books.ByIDs(ctx, bookIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]OverdueBook, 0, len(recs))
	for _, r := range recs {
		b, okB := books[r.BookID]
		u, okU := users[r.UserID]
		if !okB || !okU {
			continue
		}
		out = append(out, OverdueBook{
			BorrowRecord: r,
			Book:         b,
			User:         u,
			DaysOverdue:  now.Sub(r.DueDate).Hours() / 24,
		})
	}
	return out, nil
}
