// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Reddit_Clone/internal/model"
)

var dbSeq atomic.Int64

// NewDB opens an isolated in-memory sqlite database with every model migrated.
// A single connection keeps the in-memory schema visible to all queries.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=off", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Email: username + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// FailCreates makes the next n INSERTs into table fail with err, the way a
// server-side error surfaces from the driver.
func FailCreates(t *testing.T, db *gorm.DB, table string, err error, n int) {
	t.Helper()
	var remaining atomic.Int64
	remaining.Store(int64(n))
	name := fmt.Sprintf("testutil:fail_create_%s_%d", table, dbSeq.Add(1))
	cbErr := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table || remaining.Load() <= 0 {
			return
		}
		remaining.Add(-1)
		_ = tx.AddError(err)
	})
	if cbErr != nil {
		t.Fatalf("register create callback: %v", cbErr)
	}
}
