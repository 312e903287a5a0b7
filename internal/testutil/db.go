// Package testutil 测试辅助：每个测试独立的 sqlite 内存数据库
package testutil

import (
	"fmt"
	"testing"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB 创建已迁移的内存数据库，测试结束时关闭
// 单连接：sqlite 写锁是库级的，多连接并发写会出现 database is locked
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
