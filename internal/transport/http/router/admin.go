package router

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-library-api/internal/domain"
	"go-library-api/internal/service"
	httpez "go-library-api/internal/transport/http/ez"
	mdw "go-library-api/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：全部接口要求 admin 角色，另挂 /metrics。
func NewAdminEngine(l *zap.Logger, d Deps) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(15*time.Second),
		ginzap.RecoveryWithZap(l, true),
		mdw.Metrics(),
		ginzap.Ginzap(l, time.RFC3339, true),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWTer, domain.RoleAdmin))
	mountAdminActions(admin, d)

	return r
}

func mountAdminActions(admin *gin.RouterGroup, d Deps) {
	ezAdmin := httpez.New(admin)

	// --- 上架新书 ---
	httpez.RegisterAction[service.AddBookInput, *domain.Book](ezAdmin, d.DB, httpez.Action[service.AddBookInput, *domain.Book]{
		Method: http.MethodPost,
		Path:   "/books",
		Binder: httpez.BindJSON,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.AddBookInput) (*domain.Book, error) {
			b, err := d.Catalog.AddBook(c.Request.Context(), *in)
			if err != nil {
				return nil, svcErr(err)
			}
			return b, nil
		},
	})

	// --- 用户列表 ---
	type listQ struct {
		Offset int    `form:"offset,default=0"`
		Limit  int    `form:"limit,default=20"`
		Q      string `form:"q"` // 可选：按 email/name 模糊搜
	}
	type listOut struct {
		Total int64         `json:"total"`
		Items []domain.User `json:"items"`
	}
	httpez.RegisterAction[listQ, listOut](ezAdmin, d.DB, httpez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, in *listQ) (listOut, error) {
			if in.Limit <= 0 || in.Limit > 100 {
				in.Limit = 20
			}
			us, total, err := d.Users.List(c.Request.Context(), in.Offset, in.Limit, in.Q)
			if err != nil {
				return listOut{}, httpez.Internal("list users failed", err)
			}
			return listOut{Total: total, Items: us}, nil
		},
	})

	// --- 六项聚合报表 ---
	httpez.RegisterAction[struct{}, *service.AnalyticsReport](ezAdmin, d.DB, httpez.Action[struct{}, *service.AnalyticsReport]{
		Method: http.MethodGet,
		Path:   "/analytics",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (*service.AnalyticsReport, error) {
			report, err := d.Reporting.Analytics(c.Request.Context())
			if err != nil {
				return nil, httpez.Internal("analytics failed", err)
			}
			return report, nil
		},
	})

	// --- 告警列表 ---
	httpez.RegisterAction[struct{}, []service.Notification](ezAdmin, d.DB, httpez.Action[struct{}, []service.Notification]{
		Method: http.MethodGet,
		Path:   "/notifications",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]service.Notification, error) {
			counts, err := d.Reporting.LiveCounts(c.Request.Context())
			if err != nil {
				return nil, httpez.Internal("live counts failed", err)
			}
			return service.BuildNotifications(counts), nil
		},
	})

	// --- 逾期清单 ---
	httpez.RegisterAction[struct{}, []service.OverdueBook](ezAdmin, d.DB, httpez.Action[struct{}, []service.OverdueBook]{
		Method: http.MethodGet,
		Path:   "/overdue-books",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]service.OverdueBook, error) {
			out, err := d.Lending.OverdueBooks(c.Request.Context())
			if err != nil {
				return nil, httpez.Internal("overdue books failed", err)
			}
			return out, nil
		},
	})
}
