package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/model"
)

// TestBuildDSN 测试 DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret", DBName: "dashboard", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=dashboard sslmode=disable", dsn)
}

// TestPoolConfigDefaults 测试连接池参数缺省补全
func TestPoolConfigDefaults(t *testing.T) {
	pool := poolConfigFrom(config.DatabaseConfig{}, false)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 100, pool.MaxOpenConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)

	pool = poolConfigFrom(config.DatabaseConfig{}, true)
	assert.Equal(t, 20, pool.MaxIdleConns)
	assert.Equal(t, 200, pool.MaxOpenConns)
	assert.Equal(t, 300, pool.ConnMaxIdleTime)

	pool = poolConfigFrom(config.DatabaseConfig{MaxIdleConns: 5, MaxOpenConns: 50}, true)
	assert.Equal(t, 5, pool.MaxIdleConns)
	assert.Equal(t, 50, pool.MaxOpenConns)
}

// TestMigrateSQLite 测试 SQLite 建表后模型可读写
func TestMigrateSQLite(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	// 迁移应当幂等
	require.NoError(t, Migrate(db))

	now := time.Now()
	tm := &model.TemplateModel{
		ID:              "t1",
		Code:            "safety",
		Name:            "Safety Dashboard",
		InheritanceType: model.InheritanceNone,
		Status:          model.StatusDraft,
		VersionMajor:    1,
		SchemaVersion:   "1.0.0",
		Structure:       []byte(`{"menu":{"items":[]}}`),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, db.Create(tm).Error)

	var loaded model.TemplateModel
	require.NoError(t, db.First(&loaded, "id = ?", "t1").Error)
	assert.Equal(t, "safety", loaded.Code)
	assert.JSONEq(t, `{"menu":{"items":[]}}`, string(loaded.Structure))

	// code 唯一索引生效
	dup := *tm
	dup.ID = "t2"
	assert.Error(t, db.Create(&dup).Error)
}

// TestCheckHealth 测试健康检查
func TestCheckHealth(t *testing.T) {
	assert.False(t, CheckHealth(nil))

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	assert.True(t, CheckHealth(db))
}
