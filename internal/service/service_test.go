package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-library-api/internal/core/config"
	"go-library-api/internal/domain"
	"go-library-api/internal/repo"
	"go-library-api/pkg/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接各自独立，收敛到单连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Book{}, &domain.BorrowRecord{}))
	return db
}

func testLendingCfg() config.Lending {
	return config.Lending{
		LoanDays:      14,
		DueSoonDays:   3,
		LowStockBelow: 2,
		TrendMonths:   6,
		ActivityDays:  30,
		TopBooks:      10,
		CacheTTLSec:   30,
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func newLending(t *testing.T, db *gorm.DB, now time.Time) *LendingService {
	t.Helper()
	books := repo.NewBookRepo(db)
	borrows := repo.NewBorrowRepo(db)
	users := repo.NewUserRepo(db)
	return NewLendingService(db, books, borrows, users, nil, 14).WithClock(fixedClock(now))
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        name + "@example.com",
		Name:         name,
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedBook(t *testing.T, db *gorm.DB, title, category string, total, available int) *domain.Book {
	t.Helper()
	b := &domain.Book{
		ID:              utils.NewID(),
		Title:           title,
		Author:          "Author of " + title,
		ISBN:            utils.NewID()[:13],
		Category:        category,
		TotalCopies:     total,
		AvailableCopies: available,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func seedRecord(t *testing.T, db *gorm.DB, userID, bookID string, borrowed, due time.Time, status string, returned *time.Time) *domain.BorrowRecord {
	t.Helper()
	r := &domain.BorrowRecord{
		ID:         utils.NewID(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowed,
		DueDate:    due,
		ReturnDate: returned,
		Status:     status,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func bookByID(t *testing.T, db *gorm.DB, id string) *domain.Book {
	t.Helper()
	var b domain.Book
	require.NoError(t, db.First(&b, "id = ?", id).Error)
	return &b
}
