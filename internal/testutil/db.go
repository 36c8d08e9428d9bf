// Package testutil holds helpers shared by service and handler tests.
package testutil

import (
	"testing"

	"course-ledger/database"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/users"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory database. The pool holds one connection,
// so concurrent transactions queue behind each other instead of failing with
// SQLITE_BUSY; row locks are a no-op on sqlite.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, name, role string) *users.User {
	t.Helper()
	u := &users.User{Name: name, Email: name + "@example.com", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateCourse(t testing.TB, db *gorm.DB, instructorID uint, title string, price int64, discounted *int64) *courses.Course {
	t.Helper()
	c := &courses.Course{InstructorID: instructorID, Title: title, Price: price, DiscountedPrice: discounted}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

// Reload reads the user row again.
func Reload(t testing.TB, db *gorm.DB, id uint) users.User {
	t.Helper()
	var u users.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	return u
}
