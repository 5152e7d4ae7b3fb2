package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-library-api/internal/core/auth"
	"go-library-api/internal/core/cache"
	"go-library-api/internal/core/config"
	"go-library-api/internal/core/database"
	"go-library-api/internal/core/logger"
	"go-library-api/internal/core/server"
	"go-library-api/internal/domain"
	"go-library-api/internal/repo"
	"go-library-api/internal/service"
	"go-library-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// 自动迁移
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}, &domain.Book{}, &domain.BorrowRecord{}); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	// 书目列表缓存（未配 redis 时关闭）
	var c *cache.Cache
	if cfg.Redis.Addr != "" {
		c = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	deps := buildDeps(db, jwter, c, cfg, log)
	r := router.NewAPIEngine(log, deps)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("library api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("library api start FAILED", zap.Error(err))
		}
	}()
	log.Info("library api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("library api stopped gracefully")
}

func buildDeps(db *gorm.DB, jwter *auth.JWTer, c *cache.Cache, cfg *config.Config, log *zap.Logger) router.Deps {
	users := repo.NewUserRepo(db)
	books := repo.NewBookRepo(db)
	borrows := repo.NewBorrowRepo(db)
	return router.Deps{
		DB:        db,
		JWTer:     jwter,
		Users:     users,
		Accounts:  service.NewAccountService(users, borrows, jwter),
		Catalog:   service.NewCatalogService(books, c, time.Duration(cfg.Lending.CacheTTLSec)*time.Second),
		Lending:   service.NewLendingService(db, books, borrows, users, log, cfg.Lending.LoanDays),
		Reporting: service.NewReportingService(db, cfg.Lending),
	}
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))
	}
	return db
}
