package db

import (
	"context"
	"fmt"
	"time"

	"devconnect/internal/model"
	"devconnect/pkg/config"
	"devconnect/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// 初始化数据库连接
func InitDB() error {
	cfg := config.GlobalConfig.Database

	dialector, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移模式
	err = DB.AutoMigrate(
		&model.User{},
		&model.Follow{},
		&model.Fan{},
		&model.Post{},
		&model.PostLike{},
		&model.Comment{},
		&model.Message{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.L.Info("Database connected and migrated successfully", zap.String("driver", cfg.Driver))
	return nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql", "":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// 为单次存储调用设置超时
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := config.GlobalConfig.Database.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
