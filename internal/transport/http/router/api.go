package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-library-api/internal/core/auth"
	"go-library-api/internal/domain"
	"go-library-api/internal/service"
	httpez "go-library-api/internal/transport/http/ez"
	mdw "go-library-api/internal/transport/http/middleware"
)

// Deps 两个引擎共用的依赖集合。
type Deps struct {
	DB        *gorm.DB
	JWTer     *auth.JWTer
	Users     domain.UserRepository
	Accounts  *service.AccountService
	Catalog   *service.CatalogService
	Lending   *service.LendingService
	Reporting *service.ReportingService
}

// NewAPIEngine 读者端：注册/登录/书目公开，借还和个人视图要求登录。
func NewAPIEngine(l *zap.Logger, d Deps) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.SimpleRecovery(),
		mdw.Metrics(),
		mdw.AccessLog(l),
		cors.Default(),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	api := r.Group("/api/v1")
	mountPublicActions(api, d)

	// 鉴权分组（必须挂中间件才能拿到 userId）
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(d.JWTer, ""))
	mountUserActions(authed, d)

	return r
}

func mountPublicActions(api *gin.RouterGroup, d Deps) {
	ezPublic := httpez.New(api)

	type registerOut struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	httpez.RegisterAction[service.RegisterInput, registerOut](ezPublic, d.DB, httpez.Action[service.RegisterInput, registerOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.RegisterInput) (registerOut, error) {
			u, err := d.Accounts.Register(c.Request.Context(), *in)
			if err != nil {
				return registerOut{}, svcErr(err)
			}
			return registerOut{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}, nil
		},
	})

	type loginOut struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	httpez.RegisterAction[service.LoginInput, loginOut](ezPublic, d.DB, httpez.Action[service.LoginInput, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.LoginInput) (loginOut, error) {
			token, u, err := d.Accounts.Login(c.Request.Context(), *in)
			if err != nil {
				return loginOut{}, svcErr(err)
			}
			return loginOut{Token: token, User: u}, nil
		},
	})

	// 书目列表对匿名开放
	type booksQ struct {
		Search   string `form:"search"`
		Category string `form:"category"`
	}
	httpez.RegisterAction[booksQ, []domain.Book](ezPublic, d.DB, httpez.Action[booksQ, []domain.Book]{
		Method: http.MethodGet,
		Path:   "/books",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, _ *gorm.DB, in *booksQ) ([]domain.Book, error) {
			books, err := d.Catalog.List(c.Request.Context(), in.Search, in.Category)
			if err != nil {
				return nil, svcErr(err)
			}
			return books, nil
		},
	})
}

func mountUserActions(authed *gin.RouterGroup, d Deps) {
	ezAuth := httpez.New(authed)

	httpez.RegisterAction[struct{}, *service.Profile](ezAuth, d.DB, httpez.Action[struct{}, *service.Profile]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*service.Profile, error) {
			p, err := d.Accounts.Me(c.Request.Context(), c.GetString("userId"))
			if err != nil {
				return nil, svcErr(err)
			}
			return p, nil
		},
	})

	type borrowIn struct {
		BookID string `json:"bookId" binding:"required"`
	}
	httpez.RegisterAction[borrowIn, *domain.BorrowRecord](ezAuth, d.DB, httpez.Action[borrowIn, *domain.BorrowRecord]{
		Method: http.MethodPost,
		Path:   "/books/borrow",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *borrowIn) (*domain.BorrowRecord, error) {
			rec, err := d.Lending.Borrow(c.Request.Context(), c.GetString("userId"), in.BookID)
			if err != nil {
				return nil, svcErr(err)
			}
			return rec, nil
		},
	})

	httpez.RegisterAction[borrowIn, gin.H](ezAuth, d.DB, httpez.Action[borrowIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/books/return",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *borrowIn) (gin.H, error) {
			if err := d.Lending.Return(c.Request.Context(), c.GetString("userId"), in.BookID); err != nil {
				return nil, svcErr(err)
			}
			return gin.H{"bookId": in.BookID}, nil
		},
	})

	httpez.RegisterAction[struct{}, []service.BorrowedBook](ezAuth, d.DB, httpez.Action[struct{}, []service.BorrowedBook]{
		Method: http.MethodGet,
		Path:   "/user/borrowed-books",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]service.BorrowedBook, error) {
			out, err := d.Lending.BorrowedBooks(c.Request.Context(), c.GetString("userId"))
			if err != nil {
				return nil, svcErr(err)
			}
			return out, nil
		},
	})
}

// svcErr 把 service 层的哨兵错误翻译成统一错误码；
// 冲突类错误可区分、不重试，其余一律按内部错误兜底。
func svcErr(err error) error {
	switch {
	case errors.Is(err, service.ErrBookNotFound), errors.Is(err, service.ErrUserNotFound):
		return httpez.NotFound(err.Error())
	case errors.Is(err, service.ErrBookUnavailable),
		errors.Is(err, service.ErrAlreadyBorrowed),
		errors.Is(err, service.ErrNoActiveLoan),
		errors.Is(err, service.ErrEmailTaken):
		return httpez.Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return httpez.Unauthorized(err.Error())
	default:
		return httpez.Internal("internal error", err)
	}
}
