package service

import "errors"

// 业务冲突类错误：对外映射为可区分的错误码，不做自动重试。
var (
	ErrBookNotFound       = errors.New("book not found")
	ErrBookUnavailable    = errors.New("book unavailable")
	ErrAlreadyBorrowed    = errors.New("book already borrowed")
	ErrNoActiveLoan       = errors.New("no active borrow record")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
