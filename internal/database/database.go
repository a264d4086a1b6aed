package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/model"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// poolConfigFrom 从数据库配置取连接池参数,缺省项按环境补默认值
func poolConfigFrom(cfg config.DatabaseConfig, production bool) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
		if production {
			pool.MaxIdleConns = 20
		}
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
		if production {
			pool.MaxOpenConns = 200
		}
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600 // 1 小时
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600 // 10 分钟
		if production {
			pool.ConnMaxIdleTime = 300
		}
	}
	return pool
}

// Connect 连接 PostgreSQL 并配置连接池
func Connect(cfg config.DatabaseConfig, production bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := poolConfigFrom(cfg, production)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带指数退避重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, production bool, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg, production)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// OpenSQLite 打开 SQLite 数据库,主要用于本地开发和测试
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return db, nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,手动建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.TemplateModel{},
			&model.TemplateVersionModel{},
			&model.StudyModel{},
			&model.StudyDashboardModel{},
			&model.DatasetModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS templates (
			id VARCHAR(64) PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			parent_template_id VARCHAR(64),
			inheritance_type VARCHAR(16) NOT NULL DEFAULT 'NONE',
			status VARCHAR(16) NOT NULL DEFAULT 'DRAFT',
			version_major INTEGER NOT NULL DEFAULT 1,
			version_minor INTEGER NOT NULL DEFAULT 0,
			version_patch INTEGER NOT NULL DEFAULT 0,
			schema_version VARCHAR(16),
			is_public BOOLEAN NOT NULL DEFAULT 0,
			structure TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64),
			updated_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create templates table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS template_versions (
			id VARCHAR(64) PRIMARY KEY,
			template_id VARCHAR(64) NOT NULL,
			version_major INTEGER NOT NULL,
			version_minor INTEGER NOT NULL,
			version_patch INTEGER NOT NULL,
			schema_version VARCHAR(16),
			structure TEXT NOT NULL,
			change_description TEXT,
			breaking_changes BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create template_versions table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS studies (
			id VARCHAR(64) PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			sponsor VARCHAR(255),
			phase VARCHAR(16),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create studies table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS study_dashboards (
			id VARCHAR(64) PRIMARY KEY,
			study_id VARCHAR(64) NOT NULL,
			template_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create study_dashboards table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			id VARCHAR(64) PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255),
			fields TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create datasets table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_code ON templates(code)",
		"CREATE INDEX IF NOT EXISTS idx_templates_parent ON templates(parent_template_id)",
		"CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status)",
		"CREATE INDEX IF NOT EXISTS idx_templates_updated_at ON templates(updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_versions_template_id ON template_versions(template_id)",
		"CREATE INDEX IF NOT EXISTS idx_versions_created_at ON template_versions(created_at)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_studies_code ON studies(code)",
		"CREATE INDEX IF NOT EXISTS idx_dashboards_study_id ON study_dashboards(study_id)",
		"CREATE INDEX IF NOT EXISTS idx_dashboards_template_id ON study_dashboards(template_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_datasets_code ON datasets(code)",
		"CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_logs(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	// PostgreSQL 上给结构文档建 GIN 索引
	if dialector == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_templates_structure_gin ON templates USING GIN (structure)").Error; err != nil {
			return fmt.Errorf("failed to create idx_templates_structure_gin: %w", err)
		}
	}

	return nil
}
