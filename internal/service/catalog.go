package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-library-api/internal/core/cache"
	"go-library-api/internal/domain"
	"go-library-api/pkg/utils"
)

// CatalogService 管书目：匿名可查，上架仅管理员。
// availableCopies 只归借还事务改，这里只在建档时初始化。
type CatalogService struct {
	books    domain.BookRepository
	cache    *cache.Cache // 可为 nil（测试或未配 redis 时直查库）
	cacheTTL time.Duration
}

func NewCatalogService(books domain.BookRepository, c *cache.Cache, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{books: books, cache: c, cacheTTL: cacheTTL}
}

func (s *CatalogService) List(ctx context.Context, search, category string) ([]domain.Book, error) {
	if s.cache == nil {
		return s.books.List(ctx, search, category)
	}
	key := fmt.Sprintf("books:list:%s:%s", strings.ToLower(strings.TrimSpace(search)), category)
	out, err := cache.GetOrLoadJSON[[]domain.Book](s.cache, ctx, key, s.cacheTTL, func(ctx context.Context) (*[]domain.Book, error) {
		bs, e := s.books.List(ctx, search, category)
		if e != nil {
			return nil, e
		}
		return &bs, nil
	})
	if err != nil || out == nil {
		// 缓存链路出错就放弃缓存直查，不把 redis 故障升级成接口故障
		return s.books.List(ctx, search, category)
	}
	return *out, nil
}

type AddBookInput struct {
	Title       string `json:"title" binding:"required,max=255"`
	Author      string `json:"author" binding:"required,max=255"`
	ISBN        string `json:"isbn" binding:"required,max=32"`
	Category    string `json:"category" binding:"required,max=64"`
	Description string `json:"description"`
	TotalCopies int    `json:"totalCopies" binding:"required,min=1"`
}

func (s *CatalogService) AddBook(ctx context.Context, in AddBookInput) (*domain.Book, error) {
	b := &domain.Book{
		ID:              utils.NewID(),
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		ISBN:            strings.TrimSpace(in.ISBN),
		Category:        strings.TrimSpace(in.Category),
		Description:     in.Description,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies, // 新书全部在架
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}
