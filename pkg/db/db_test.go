package db

import (
	"path/filepath"
	"testing"

	"github.com/mthirumalai2905/clubly-community-hub/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host:     "db.local",
		Port:     3306,
		Username: "clubly",
		Password: "p@ss",
		Database: "social",
		Charset:  "utf8mb4",
	})

	assert.Contains(t, dsn, "clubly:p@ss@tcp(db.local:3306)/social")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clubly.db")
	gdb, err := InitDB(config.DatabaseConfig{Driver: "sqlite", Database: path, MaxOpen: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })

	type sample struct {
		ID   uint
		Name string
	}
	require.NoError(t, AutoMigrate(&sample{}))
	require.NoError(t, HealthCheck())
	assert.Same(t, gdb, GetDB())
	assert.True(t, gdb.Migrator().HasTable(&sample{}))
}
