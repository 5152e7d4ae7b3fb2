package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-library-api/internal/core/config"
	"go-library-api/internal/domain"
)

func newReporting(db *gorm.DB, cfg config.Lending, now time.Time) *ReportingService {
	return NewReportingService(db, cfg).WithClock(fixedClock(now))
}

func TestCategoryAnalytics(t *testing.T) {
	db := newTestDB(t)
	// Fiction：3 本共 13 册，借出 2 册
	seedBook(t, db, "Dune", "Fiction", 5, 5)
	seedBook(t, db, "Foundation", "Fiction", 4, 4)
	seedBook(t, db, "Hyperion", "Fiction", 4, 2)
	// Science：1 本全部借出
	seedBook(t, db, "Cosmos", "Science", 2, 0)

	svc := newReporting(db, testLendingCfg(), testNow)
	stats, err := svc.CategoryAnalytics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// 按 totalBooks 降序
	fiction := stats[0]
	assert.Equal(t, "Fiction", fiction.Category)
	assert.Equal(t, 3, fiction.TotalBooks)
	assert.Equal(t, 13, fiction.TotalCopies)
	assert.Equal(t, 11, fiction.AvailableCopies)
	assert.Equal(t, 2, fiction.BorrowedCopies)
	assert.InDelta(t, 15.38, fiction.UtilizationRate, 0.01)

	science := stats[1]
	assert.Equal(t, "Science", science.Category)
	assert.Equal(t, 2, science.BorrowedCopies)
	assert.InDelta(t, 100, science.UtilizationRate, 0.001)
}

func TestCategoryAnalyticsZeroCopies(t *testing.T) {
	db := newTestDB(t)
	seedBook(t, db, "Placeholder", "Misc", 0, 0)

	svc := newReporting(db, testLendingCfg(), testNow)
	stats, err := svc.CategoryAnalytics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)

	// 总册数为 0 时利用率按 0 处理，不能除零
	assert.Equal(t, 0.0, stats[0].UtilizationRate)
}

func TestMonthlyTrends(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 5, 5)

	may := time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	ret := june.AddDate(0, 0, 4)
	seedRecord(t, db, user.ID, book.ID, may, may.AddDate(0, 0, 14), domain.BorrowStatusReturned, &ret)
	seedRecord(t, db, user.ID, book.ID, june, june.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, user.ID, book.ID, june.AddDate(0, 0, 1), june.AddDate(0, 0, 15), domain.BorrowStatusBorrowed, nil)
	// 窗口外的不计入
	old := testNow.AddDate(0, -8, 0)
	seedRecord(t, db, user.ID, book.ID, old, old.AddDate(0, 0, 14), domain.BorrowStatusReturned, &old)

	svc := newReporting(db, testLendingCfg(), testNow)
	trends, err := svc.MonthlyTrends(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 2)

	// 时间升序
	assert.Equal(t, MonthlyTrend{Year: 2025, Month: 5, BorrowCount: 1, ReturnCount: 1}, trends[0])
	assert.Equal(t, MonthlyTrend{Year: 2025, Month: 6, BorrowCount: 2, ReturnCount: 0}, trends[1])
}

func TestTopBorrowedBooks(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	dune := seedBook(t, db, "Dune", "Fiction", 5, 5)
	hobbit := seedBook(t, db, "The Hobbit", "Fiction", 5, 5)
	cosmos := seedBook(t, db, "Cosmos", "Science", 5, 5)

	seedTimes := func(bookID string, n int) {
		for i := 0; i < n; i++ {
			borrowed := testNow.AddDate(0, 0, -i-1)
			ret := borrowed.AddDate(0, 0, 1)
			seedRecord(t, db, user.ID, bookID, borrowed, borrowed.AddDate(0, 0, 14), domain.BorrowStatusReturned, &ret)
		}
	}
	seedTimes(dune.ID, 3)
	seedTimes(hobbit.ID, 5)
	seedTimes(cosmos.ID, 1)
	// 台账里残留的不存在的书不应出现在榜单里
	seedRecord(t, db, user.ID, "ghost-book", testNow.AddDate(0, 0, -2), testNow.AddDate(0, 0, 12), domain.BorrowStatusBorrowed, nil)

	cfg := testLendingCfg()
	cfg.TopBooks = 2
	svc := newReporting(db, cfg, testNow)
	top, err := svc.TopBorrowedBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "The Hobbit", top[0].Book.Title)
	assert.Equal(t, 5, top[0].BorrowCount)
	assert.Equal(t, "Dune", top[1].Book.Title)
	assert.Equal(t, 3, top[1].BorrowCount)
}

func TestUserActivityStats(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	seedUser(t, db, "carol", domain.RoleUser) // 从未借过书
	seedUser(t, db, "root", domain.RoleAdmin) // 管理员不计入
	book := seedBook(t, db, "Dune", "Fiction", 5, 3)

	seedRecord(t, db, alice.ID, book.ID, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 13), domain.BorrowStatusBorrowed, nil)
	ret := testNow.AddDate(0, 0, -5)
	seedRecord(t, db, alice.ID, book.ID, testNow.AddDate(0, 0, -10), testNow.AddDate(0, 0, 4), domain.BorrowStatusReturned, &ret)
	seedRecord(t, db, bob.ID, book.ID, testNow.AddDate(0, 0, -20), testNow.AddDate(0, 0, -6), domain.BorrowStatusReturned, &ret)

	svc := newReporting(db, testLendingCfg(), testNow)
	stats, err := svc.UserActivityStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 1, stats.ActiveUsers) // 只有 alice 有活跃借阅
	assert.InDelta(t, 1.0, stats.AvgBorrowsPerUser, 0.001)
}

func TestUserActivityStatsNoUsers(t *testing.T) {
	db := newTestDB(t)
	svc := newReporting(db, testLendingCfg(), testNow)
	stats, err := svc.UserActivityStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UserActivityStats{}, stats)
}

func TestDailyActivity(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 9, 9)

	day1 := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 12, 18, 0, 0, 0, time.UTC)
	seedRecord(t, db, user.ID, book.ID, day1, day1.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, user.ID, book.ID, day1.Add(3*time.Hour), day1.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, user.ID, book.ID, day2, day2.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)
	// 窗口外
	old := testNow.AddDate(0, 0, -40)
	seedRecord(t, db, user.ID, book.ID, old, old.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)

	svc := newReporting(db, testLendingCfg(), testNow)
	days, err := svc.DailyActivity(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, DailyActivity{Date: "2025-06-10", BorrowCount: 2}, days[0])
	assert.Equal(t, DailyActivity{Date: "2025-06-12", BorrowCount: 1}, days[1])
}

func TestOverdueAnalysis(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 9, 9)

	// 逾期 2 天和 6 天各一条
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -16), testNow.AddDate(0, 0, -2), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -20), testNow.AddDate(0, 0, -6), domain.BorrowStatusBorrowed, nil)
	// 已归还的逾期记录不计
	ret := testNow.AddDate(0, 0, -1)
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -30), testNow.AddDate(0, 0, -16), domain.BorrowStatusReturned, &ret)

	svc := newReporting(db, testLendingCfg(), testNow)
	oa, err := svc.OverdueAnalysis(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, oa.TotalOverdue)
	assert.InDelta(t, 4, oa.AvgDaysOverdue, 0.001)
	assert.InDelta(t, 6, oa.MaxDaysOverdue, 0.001)
}

func TestAnalyticsEmptyDatabase(t *testing.T) {
	db := newTestDB(t)
	svc := newReporting(db, testLendingCfg(), testNow)

	report, err := svc.Analytics(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.CategoryAnalytics)
	assert.Empty(t, report.MonthlyTrends)
	assert.Empty(t, report.TopBorrowedBooks)
	assert.Equal(t, UserActivityStats{}, report.UserStats)
	assert.Empty(t, report.DailyActivity)
	assert.Equal(t, OverdueAnalysis{}, report.OverdueAnalysis)
}

func TestLiveCounts(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 9, 9)
	seedBook(t, db, "Rare", "Fiction", 3, 1)  // 低库存
	seedBook(t, db, "Gone", "Fiction", 2, 0)  // 无库存
	seedBook(t, db, "Full", "Fiction", 5, 5)  // 正常

	// 逾期一条
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -16), testNow.AddDate(0, 0, -2), domain.BorrowStatusBorrowed, nil)
	// 今天到期（12 小时后）
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -14), testNow.Add(12*time.Hour), domain.BorrowStatusBorrowed, nil)
	// 2 天后到期：在 due-soon 窗口内、不算今天
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -12), testNow.AddDate(0, 0, 2), domain.BorrowStatusBorrowed, nil)
	// 10 天后到期：三个窗口都不进
	seedRecord(t, db, user.ID, book.ID, testNow.AddDate(0, 0, -4), testNow.AddDate(0, 0, 10), domain.BorrowStatusBorrowed, nil)
	// 近 24 小时借出一条（上面 -4 天的那条不算）
	seedRecord(t, db, user.ID, book.ID, testNow.Add(-2*time.Hour), testNow.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)

	svc := newReporting(db, testLendingCfg(), testNow)
	c, err := svc.LiveCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, c.Overdue)
	assert.Equal(t, 1, c.DueToday)
	assert.Equal(t, 2, c.DueSoon) // due-soon 是 due-today 的超集
	assert.Equal(t, 1, c.LowStock)
	assert.Equal(t, 1, c.OutOfStock)
	assert.Equal(t, 1, c.RecentBorrows)
}
