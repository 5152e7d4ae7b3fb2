package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"go-library-api/internal/core/config"
	"go-library-api/internal/domain"
)

type CategoryStat struct {
	Category        string  `json:"category"`
	TotalBooks      int     `json:"totalBooks"`
	TotalCopies     int     `json:"totalCopies"`
	AvailableCopies int     `json:"availableCopies"`
	BorrowedCopies  int     `json:"borrowedCopies"`
	UtilizationRate float64 `json:"utilizationRate"`
}

type MonthlyTrend struct {
	Year        int `json:"year"`
	Month       int `json:"month"`
	BorrowCount int `json:"borrowCount"`
	ReturnCount int `json:"returnCount"`
}

type TopBook struct {
	Book        domain.Book `json:"book"`
	BorrowCount int         `json:"borrowCount"`
}

type UserActivityStats struct {
	TotalUsers        int     `json:"totalUsers"`
	ActiveUsers       int     `json:"activeUsers"`
	AvgBorrowsPerUser float64 `json:"avgBorrowsPerUser"`
}

type DailyActivity struct {
	Date        string `json:"date"` // "2006-01-02"
	BorrowCount int    `json:"borrowCount"`
}

type OverdueAnalysis struct {
	TotalOverdue   int     `json:"totalOverdue"`
	AvgDaysOverdue float64 `json:"avgDaysOverdue"`
	MaxDaysOverdue float64 `json:"maxDaysOverdue"`
}

type AnalyticsReport struct {
	CategoryAnalytics []CategoryStat    `json:"categoryAnalytics"`
	MonthlyTrends     []MonthlyTrend    `json:"monthlyTrends"`
	TopBorrowedBooks  []TopBook         `json:"topBorrowedBooks"`
	UserStats         UserActivityStats `json:"userStats"`
	DailyActivity     []DailyActivity   `json:"dailyActivity"`
	OverdueAnalysis   OverdueAnalysis   `json:"overdueAnalysis"`
}

// ReportingService 纯读侧：按需在台账和书目上重算，不做物化。
// 各查询各自取各自时刻的一致快照即可，互相之间不要求严格可串行化。
type ReportingService struct {
	db  *gorm.DB
	cfg config.Lending
	now func() time.Time
}

func NewReportingService(db *gorm.DB, cfg config.Lending) *ReportingService {
	return &ReportingService{db: db, cfg: cfg, now: time.Now}
}

func (s *ReportingService) WithClock(now func() time.Time) *ReportingService {
	s.now = now
	return s
}

func (s *ReportingService) Analytics(ctx context.Context) (*AnalyticsReport, error) {
	report := &AnalyticsReport{}
	var err error
	if report.CategoryAnalytics, err = s.CategoryAnalytics(ctx); err != nil {
		return nil, err
	}
	if report.MonthlyTrends, err = s.MonthlyTrends(ctx); err != nil {
		return nil, err
	}
	if report.TopBorrowedBooks, err = s.TopBorrowedBooks(ctx); err != nil {
		return nil, err
	}
	if report.UserStats, err = s.UserActivityStats(ctx); err != nil {
		return nil, err
	}
	if report.DailyActivity, err = s.DailyActivity(ctx); err != nil {
		return nil, err
	}
	if report.OverdueAnalysis, err = s.OverdueAnalysis(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

// CategoryAnalytics 分类维度的藏书量与利用率，按 totalBooks 降序。
func (s *ReportingService) CategoryAnalytics(ctx context.Context) ([]CategoryStat, error) {
	var rows []CategoryStat
	err := s.db.WithContext(ctx).Model(&domain.Book{}).
		Select("category, COUNT(*) AS total_books, COALESCE(SUM(total_copies), 0) AS total_copies, COALESCE(SUM(available_copies), 0) AS available_copies").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		r := &rows[i]
		r.BorrowedCopies = r.TotalCopies - r.AvailableCopies
		if r.TotalCopies > 0 {
			r.UtilizationRate = float64(r.BorrowedCopies) / float64(r.TotalCopies) * 100
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalBooks > rows[j].TotalBooks })
	if rows == nil {
		rows = []CategoryStat{}
	}
	return rows, nil
}

// MonthlyTrends 近 N 个月按 (年, 月) 分桶。分桶放在 Go 侧做，
// 避免依赖各数据库方言不同的日期函数。
func (s *ReportingService) MonthlyTrends(ctx context.Context) ([]MonthlyTrend, error) {
	cutoff := s.now().AddDate(0, -s.cfg.TrendMonths, 0)
	var recs []domain.BorrowRecord
	err := s.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Select("borrow_date, status").
		Where("borrow_date >= ?", cutoff).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	type ym struct{ y, m int }
	buckets := map[ym]*MonthlyTrend{}
	for _, r := range recs {
		t := r.BorrowDate.UTC()
		k := ym{t.Year(), int(t.Month())}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlyTrend{Year: k.y, Month: k.m}
			buckets[k] = b
		}
		b.BorrowCount++
		if r.Status == domain.BorrowStatusReturned {
			b.ReturnCount++
		}
	}

	out := make([]MonthlyTrend, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// TopBorrowedBooks 历史借阅次数前 N 的书；台账里书已不存在的条目剔除（内联接语义）。
func (s *ReportingService) TopBorrowedBooks(ctx context.Context) ([]TopBook, error) {
	type grp struct {
		BookID      string
		BorrowCount int
	}
	var grps []grp
	err := s.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Select("book_id, COUNT(*) AS borrow_count").
		Group("book_id").
		Order("borrow_count DESC, book_id ASC").
		Scan(&grps).Error
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(grps))
	for _, g := range grps {
		ids = append(ids, g.BookID)
	}
	books := map[string]domain.Book{}
	if len(ids) > 0 {
		var bs []domain.Book
		if err := s.db.WithContext(ctx).Find(&bs, "id IN ?", ids).Error; err != nil {
			return nil, err
		}
		for _, b := range bs {
			books[b.ID] = b
		}
	}

	out := make([]TopBook, 0, s.cfg.TopBooks)
	for _, g := range grps {
		b, ok := books[g.BookID]
		if !ok {
			continue
		}
		out = append(out, TopBook{Book: b, BorrowCount: g.BorrowCount})
		if len(out) == s.cfg.TopBooks {
			break
		}
	}
	return out, nil
}

// UserActivityStats 只统计普通用户；从未借过书的用户按 0 计入均值。
func (s *ReportingService) UserActivityStats(ctx context.Context) (UserActivityStats, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("role = ?", domain.RoleUser).
		Pluck("id", &userIDs).Error
	if err != nil {
		return UserActivityStats{}, err
	}
	if len(userIDs) == 0 {
		return UserActivityStats{}, nil
	}

	type uc struct {
		UserID string
		Total  int
		Active int
	}
	var ucs []uc
	err = s.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Select("user_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS active", domain.BorrowStatusBorrowed).
		Group("user_id").
		Scan(&ucs).Error
	if err != nil {
		return UserActivityStats{}, err
	}
	byUser := make(map[string]uc, len(ucs))
	for _, c := range ucs {
		byUser[c.UserID] = c
	}

	stats := UserActivityStats{TotalUsers: len(userIDs)}
	sum := 0
	for _, id := range userIDs {
		c := byUser[id]
		sum += c.Total
		if c.Active > 0 {
			stats.ActiveUsers++
		}
	}
	stats.AvgBorrowsPerUser = float64(sum) / float64(stats.TotalUsers)
	return stats, nil
}

// DailyActivity 近 N 天按自然日分桶的借出量。
func (s *ReportingService) DailyActivity(ctx context.Context) ([]DailyActivity, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.ActivityDays)
	var dates []time.Time
	err := s.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Where("borrow_date >= ?", cutoff).
		Pluck("borrow_date", &dates).Error
	if err != nil {
		return nil, err
	}

	buckets := map[string]int{}
	for _, d := range dates {
		buckets[d.UTC().Format("2006-01-02")]++
	}
	out := make([]DailyActivity, 0, len(buckets))
	for day, n := range buckets {
		out = append(out, DailyActivity{Date: day, BorrowCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// OverdueAnalysis 逾期天数统计；天数按评估时刻现算，可为小数。
func (s *ReportingService) OverdueAnalysis(ctx context.Context) (OverdueAnalysis, error) {
	now := s.now()
	var dues []time.Time
	err := s.db.WithContext(ctx).Model(&domain.BorrowRecord{}).
		Where("status = ? AND due_date < ?", domain.BorrowStatusBorrowed, now).
		Pluck("due_date", &dues).Error
	if err != nil {
		return OverdueAnalysis{}, err
	}
	if len(dues) == 0 {
		return OverdueAnalysis{}, nil
	}

	var sum, maxDays float64
	for _, due := range dues {
		d := now.Sub(due).Hours() / 24
		sum += d
		if d > maxDays {
			maxDays = d
		}
	}
	return OverdueAnalysis{
		TotalOverdue:   len(dues),
		AvgDaysOverdue: sum / float64(len(dues)),
		MaxDaysOverdue: maxDays,
	}, nil
}

// LiveCounts 通知面板用的五类现势计数。
type LiveCounts struct {
	Overdue       int `json:"overdueCount"`
	DueToday      int `json:"dueTodayCount"`
	DueSoon       int `json:"dueSoonCount"`
	LowStock      int `json:"lowStockCount"`
	OutOfStock    int `json:"outOfStockCount"`
	RecentBorrows int `json:"recentBorrowCount"`
}

func (s *ReportingService) LiveCounts(ctx context.Context) (LiveCounts, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	count := func(q *gorm.DB) (int, error) {
		var n int64
		err := q.Count(&n).Error
		return int(n), err
	}

	var c LiveCounts
	var err error
	if c.Overdue, err = count(db.Model(&domain.BorrowRecord{}).
		Where("status = ? AND due_date < ?", domain.BorrowStatusBorrowed, now)); err != nil {
		return c, err
	}
	if c.DueToday, err = count(db.Model(&domain.BorrowRecord{}).
		Where("status = ? AND due_date >= ? AND due_date < ?", domain.BorrowStatusBorrowed, now, now.AddDate(0, 0, 1))); err != nil {
		return c, err
	}
	// due-soon 含 due-today，是它的超集
	if c.DueSoon, err = count(db.Model(&domain.BorrowRecord{}).
		Where("status = ? AND due_date >= ? AND due_date < ?", domain.BorrowStatusBorrowed, now, now.AddDate(0, 0, s.cfg.DueSoonDays))); err != nil {
		return c, err
	}
	if c.LowStock, err = count(db.Model(&domain.Book{}).
		Where("available_copies > 0 AND available_copies < ?", s.cfg.LowStockBelow)); err != nil {
		return c, err
	}
	if c.OutOfStock, err = count(db.Model(&domain.Book{}).
		Where("available_copies = 0")); err != nil {
		return c, err
	}
	if c.RecentBorrows, err = count(db.Model(&domain.BorrowRecord{}).
		Where("status = ? AND borrow_date >= ?", domain.BorrowStatusBorrowed, now.AddDate(0, 0, -1))); err != nil {
		return c, err
	}
	return c, nil
}
