package utils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGenerateUniqueStudentID(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		id, err := GenerateUniqueStudentID(db)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !strings.HasPrefix(id, "S") {
			t.Fatalf("id = %q, want S prefix", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = struct{}{}

		user := models.User{
			FullName:  "Student",
			Email:     fmt.Sprintf("s%d@example.com", i),
			Password:  "x",
			StudentID: &id,
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("persist user: %v", err)
		}
	}
}
