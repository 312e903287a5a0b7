package main

import (
	"fmt"
	"os"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	dbPkg "github.com/mthirumalai2905/clubly-community-hub/pkg/db"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()
	logger.InitLogger(config.LogConfig{Level: "info"})

	db, err := dbPkg.Open(cfg.Database)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	fmt.Printf("Database: %s (%s)\n", cfg.Database.Database, cfg.Database.Driver)

	tables := make([]string, 0, len(model.AllModels()))
	for _, m := range model.AllModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			logger.Fatal("解析表结构失败", zap.Error(err))
		}
		tables = append(tables, stmt.Schema.Table)
	}

	fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
	fmt.Print("Type 'YES' to confirm: ")
	var confirm string
	_, _ = fmt.Scanln(&confirm)
	if confirm != "YES" {
		fmt.Println("Operation cancelled")
		return
	}

	failed := false
	err = db.Transaction(func(tx *gorm.DB) error {
		for i, m := range model.AllModels() {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m)
			if res.Error != nil {
				return fmt.Errorf("clear %s: %w", tables[i], res.Error)
			}
			fmt.Printf("Cleared %s: %d rows\n", tables[i], res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		logger.Error("清空数据失败", zap.Error(err))
		failed = true
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if failed {
		os.Exit(1)
	}

	fmt.Println("\nDatabase reset completed!")
	fmt.Println("All table data cleared, table structure preserved")
}
