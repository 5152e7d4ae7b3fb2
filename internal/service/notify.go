package service

import "fmt"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type Notification struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // error / warning / info / success
	Title    string `json:"title"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
	Priority string `json:"priority"`
}

// BuildNotifications 把五类现势计数翻译成告警列表，纯函数无状态。
// 顺序固定：逾期、今日到期、临期、断档、低库存、近期动态；
// 展示时按 high > medium > low 排，同级保持这里的插入顺序。
func BuildNotifications(c LiveCounts) []Notification {
	out := make([]Notification, 0, 6)

	if c.Overdue > 0 {
		out = append(out, Notification{
			ID:       "overdue",
			Type:     "error",
			Title:    "Overdue Books",
			Message:  fmt.Sprintf("%d %s overdue and require immediate attention", c.Overdue, pluralBe(c.Overdue)),
			Count:    c.Overdue,
			Priority: PriorityHigh,
		})
	}
	if c.DueToday > 0 {
		out = append(out, Notification{
			ID:       "due-today",
			Type:     "warning",
			Title:    "Books Due Today",
			Message:  fmt.Sprintf("%d %s due today", c.DueToday, pluralBe(c.DueToday)),
			Count:    c.DueToday,
			Priority: PriorityMedium,
		})
	}
	if c.DueSoon > 0 {
		out = append(out, Notification{
			ID:       "due-soon",
			Type:     "info",
			Title:    "Books Due Soon",
			Message:  fmt.Sprintf("%d %s due within 3 days", c.DueSoon, pluralBe(c.DueSoon)),
			Count:    c.DueSoon,
			Priority: PriorityLow,
		})
	}
	if c.OutOfStock > 0 {
		out = append(out, Notification{
			ID:       "out-of-stock",
			Type:     "warning",
			Title:    "Out of Stock",
			Message:  fmt.Sprintf("%d %s completely out of stock", c.OutOfStock, pluralBe(c.OutOfStock)),
			Count:    c.OutOfStock,
			Priority: PriorityMedium,
		})
	}
	if c.LowStock > 0 {
		out = append(out, Notification{
			ID:       "low-stock",
			Type:     "info",
			Title:    "Low Stock Alert",
			Message:  fmt.Sprintf("%d %s less than 2 copies available", c.LowStock, pluralHave(c.LowStock)),
			Count:    c.LowStock,
			Priority: PriorityLow,
		})
	}
	if c.RecentBorrows > 0 {
		out = append(out, Notification{
			ID:       "recent-activity",
			Type:     "success",
			Title:    "Recent Activity",
			Message:  fmt.Sprintf("%d %s borrowed in the last 24 hours", c.RecentBorrows, pluralWere(c.RecentBorrows)),
			Count:    c.RecentBorrows,
			Priority: PriorityLow,
		})
	}
	return out
}

func pluralBe(n int) string {
	if n > 1 {
		return "books are"
	}
	return "book is"
}

func pluralHave(n int) string {
	if n > 1 {
		return "books have"
	}
	return "book has"
}

func pluralWere(n int) string {
	if n > 1 {
		return "books were"
	}
	return "book was"
}
