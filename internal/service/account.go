package service

import (
	"context"
	"strings"

	"go-library-api/internal/core/auth"
	"go-library-api/internal/domain"
	"go-library-api/pkg/utils"
)

// AccountService 注册/登录/个人信息。角色固定注册为 user，不提供自助提权。
type AccountService struct {
	users   domain.UserRepository
	borrows domain.BorrowRepository
	jwter   *auth.JWTer
}

func NewAccountService(users domain.UserRepository, borrows domain.BorrowRepository, jwter *auth.JWTer) *AccountService {
	return &AccountService{users: users, borrows: borrows, jwter: jwter}
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: utils.HashPassword(in.Password),
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (token string, u *domain.User, err error) {
	u, err = s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return "", nil, err
	}
	if u == nil || !utils.CheckPassword(in.Password, u.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}
	token, err = s.jwter.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Profile 带上台账投影出的在借书目集合，不落库存冗余字段。
type Profile struct {
	domain.User
	BorrowedBookIDs []string `json:"borrowedBookIds"`
}

func (s *AccountService) Me(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	ids, err := s.borrows.ActiveBookIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *u, BorrowedBookIDs: ids}, nil
}
